package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Event sources.
const (
	SourceDevice = "device"
	SourceRPC    = "rpc"
	SourceTimer  = "timer"
)

// Outcome describes what Handle did with an event.
type Outcome string

const (
	// OutcomeIgnored means the event did not apply to the current phase.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRaised means a new alert was opened.
	OutcomeRaised Outcome = "raised"
	// OutcomeDuplicate means a trigger arrived while an alert was open.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeResolved means the user closed the alert.
	OutcomeResolved Outcome = "resolved"
	// OutcomeEscalated means the escalation window elapsed.
	OutcomeEscalated Outcome = "escalated"
	// OutcomeStale means a timer fired for an alert that is no longer open.
	OutcomeStale Outcome = "stale"
	// OutcomeClosed means the coordinator was shut down.
	OutcomeClosed Outcome = "closed"
)

// Advisor produces advisory text for a prompt.
type Advisor interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CommandSink delivers command tokens to the device.
type CommandSink interface {
	Send(ctx context.Context, command string) error
}

// NotificationSink delivers notifications to observers.
type NotificationSink interface {
	Publish(ctx context.Context, n alert.Notification) error
}

// Settings are the lifecycle parameters.
type Settings struct {
	TriggerPhrase     string
	CancelPhrase      string
	EscalationWindow  time.Duration
	EscalationCommand string
	// ResolveCommand is sent on user cancel when not empty.
	ResolveCommand  string
	AdvisoryTimeout time.Duration
	// Fallback replaces advisory text that could not be generated.
	Fallback string
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithMetrics records lifecycle metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator drives the alert lifecycle.
type Coordinator struct {
	settings   Settings
	classifier alert.Classifier
	advisor    Advisor
	commands   CommandSink
	sink       NotificationSink
	metrics    *Metrics
	now        func() time.Time

	// mu serializes Handle. Everything below it is only touched while it is held.
	mu      sync.Mutex
	machine *stateless.StateMachine
	current *alert.Alert
	timer   *escalationTimer
	closed  bool

	// snapshot is republished after every transition for lock-free readers.
	snapshot atomic.Pointer[alert.Snapshot]
}

// New creates a coordinator in the idle phase.
func New(settings Settings, advisor Advisor, commands CommandSink, sink NotificationSink, opts ...Option) *Coordinator {
	c := &Coordinator{
		settings: settings,
		classifier: alert.Classifier{
			TriggerPhrase: settings.TriggerPhrase,
			CancelPhrase:  settings.CancelPhrase,
		},
		advisor:  advisor,
		commands: commands,
		sink:     sink,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.machine = c.newMachine()
	c.snapshot.Store(&alert.Snapshot{
		Phase:     alert.PhaseIdle,
		UpdatedAt: c.now(),
	})

	return c
}

// HandleLine classifies a device line and handles it.
func (c *Coordinator) HandleLine(ctx context.Context, line string) Outcome {
	ev := c.classifier.Event(line, SourceDevice, c.now())

	logger.DebugKV(ctx, "Line classified", "line", ev.Line, "kind", ev.Kind)

	return c.Handle(ctx, ev)
}

// Raise opens an alert with message on behalf of a remote caller.
func (c *Coordinator) Raise(ctx context.Context, message, source string) Outcome {
	return c.Handle(ctx, alert.Event{
		Kind:   alert.EventTrigger,
		Line:   message,
		Source: source,
		At:     c.now(),
	})
}

// Cancel closes the open alert on behalf of a remote caller.
func (c *Coordinator) Cancel(ctx context.Context, source string) Outcome {
	return c.Handle(ctx, alert.Event{
		Kind:   alert.EventCancel,
		Source: source,
		At:     c.now(),
	})
}

// Handle runs the transition for ev and its side effects. Calls are serialized.
func (c *Coordinator) Handle(ctx context.Context, ev alert.Event) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.observeEvent(ev.Kind)

	if c.closed {
		logger.DebugKV(ctx, "Event after shutdown dropped", "kind", ev.Kind, "source", ev.Source)

		return OutcomeClosed
	}

	if ev.Kind == alert.EventIgnored {
		return OutcomeIgnored
	}

	before := c.current

	if err := c.machine.FireCtx(ctx, ev.Kind, ev); err != nil {
		// The table covers every kind in both phases, so this is a programming error.
		logger.ErrorKV(ctx, "Transition rejected", "kind", ev.Kind, "source", ev.Source, "error", err)

		return OutcomeIgnored
	}

	after := c.current

	switch {
	case before == nil && after != nil:
		c.publishSnapshot()
		c.announce(ctx, after)

		return OutcomeRaised
	case before != nil && after == nil && ev.Kind == alert.EventCancel:
		c.publishSnapshot()
		c.resolve(ctx, before, ev)

		return OutcomeResolved
	case before != nil && after == nil && ev.Kind == alert.EventTimeout:
		c.publishSnapshot()
		c.escalate(ctx, before)

		return OutcomeEscalated
	case ev.Kind == alert.EventTrigger:
		c.metrics.duplicates.Inc()
		logger.InfoKV(ctx, "Duplicate trigger ignored", "alert_id", before.ID, "line", ev.Line, "source", ev.Source)

		return OutcomeDuplicate
	case ev.Kind == alert.EventTimeout:
		logger.DebugKV(ctx, "Stale escalation ignored", "alert_id", ev.AlertID)

		return OutcomeStale
	default:
		logger.DebugKV(ctx, "Event ignored", "kind", ev.Kind, "source", ev.Source)

		return OutcomeIgnored
	}
}

// Snapshot returns the current state without waiting for a transition in progress.
func (c *Coordinator) Snapshot() *alert.Snapshot {
	return c.snapshot.Load().Clone()
}

// Close disarms a pending escalation and makes Handle drop further events.
// The open alert, if any, is discarded.
func (c *Coordinator) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true

	if c.current != nil {
		logger.WarnKV(ctx, "Open alert discarded on shutdown", "alert_id", c.current.ID)
	}

	c.timer.Cancel()
}

func (c *Coordinator) publishSnapshot() {
	phase := alert.PhaseIdle
	if c.current != nil {
		phase = alert.PhaseActive
	}

	c.snapshot.Store(&alert.Snapshot{
		Phase:     phase,
		Alert:     c.current.Clone(),
		UpdatedAt: c.now(),
	})
	c.metrics.setActive(phase == alert.PhaseActive)
}

// String is used in logs.
func (o Outcome) String() string {
	return string(o)
}

// initialPrompt asks for the first summary of a fresh alert.
func initialPrompt(a *alert.Alert) string {
	return fmt.Sprintf(
		"Initial alert received: %q. Provide a brief one-sentence summary and 3 key action steps for security personnel.",
		a.Message,
	)
}

// escalationPrompt asks for deployment advice once the window elapsed.
func escalationPrompt(a *alert.Alert, window time.Duration) string {
	return fmt.Sprintf(
		"Urgent: user unresponsive for more than %s after alert %q. Advise immediate deployment.",
		window, a.Message,
	)
}
