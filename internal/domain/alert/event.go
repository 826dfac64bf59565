package alert

import (
	"strings"
	"time"
)

// EventKind is the classification of an inbound event.
type EventKind string

const (
	// EventIgnored is anything that is neither a trigger nor a cancel.
	EventIgnored EventKind = "ignored"
	// EventTrigger opens an alert.
	EventTrigger EventKind = "trigger"
	// EventCancel closes an alert on behalf of the user.
	EventCancel EventKind = "cancel"
	// EventTimeout is raised by the escalation timer.
	EventTimeout EventKind = "timeout"
)

// Event is a classified input of the coordinator.
type Event struct {
	Kind EventKind
	// Line is the inbound text. For timeouts it is empty.
	Line string
	// AlertID is set on timeouts to the alert the timer was armed for.
	AlertID string
	// Source names where the event came from (device, rpc, timer).
	Source string
	At     time.Time
}

// Classifier maps device lines to event kinds by substring match.
type Classifier struct {
	TriggerPhrase string
	CancelPhrase  string
}

// Classify returns the kind of line. Matching is case-sensitive containment,
// trigger first. Blank lines are ignored.
func (c Classifier) Classify(line string) EventKind {
	line = strings.TrimSpace(line)

	switch {
	case line == "":
		return EventIgnored
	case c.TriggerPhrase != "" && strings.Contains(line, c.TriggerPhrase):
		return EventTrigger
	case c.CancelPhrase != "" && strings.Contains(line, c.CancelPhrase):
		return EventCancel
	default:
		return EventIgnored
	}
}

// Event classifies line and wraps it into an Event stamped with at.
func (c Classifier) Event(line, source string, at time.Time) Event {
	return Event{
		Kind:   c.Classify(line),
		Line:   strings.TrimSpace(line),
		Source: source,
		At:     at,
	}
}
