package alert

import "time"

// Notification names observed by dashboards.
const (
	NotificationAlertRaised     = "alert_event"
	NotificationAlertTerminated = "alert_terminated"
	NotificationEmergency       = "emergency_message"
	NotificationStatusUpdate    = "status_update"
)

// Notification field names.
const (
	FieldAlertID  = "alert_id"
	FieldMessage  = "message"
	FieldAdvisory = "advisory"
)

const (
	// TerminatedMessage is sent to observers when the user cancels.
	TerminatedMessage = "Alert terminated by user."
	// EscalationPrefix precedes the advisory text of an escalation.
	EscalationPrefix = "Emergency escalation triggered. "
	// ConnectedMessage greets a newly connected observer.
	ConnectedMessage = "Connected to server."
)

// Notification is a named event for observers.
type Notification struct {
	Name   string
	Fields map[string]any
	At     time.Time
}

// AlertRaised builds the alert_event notification.
func AlertRaised(alertID, message, advisory string, at time.Time) Notification {
	return Notification{
		Name: NotificationAlertRaised,
		Fields: map[string]any{
			FieldAlertID:  alertID,
			FieldMessage:  message,
			FieldAdvisory: advisory,
		},
		At: at,
	}
}

// AlertTerminated builds the alert_terminated notification.
func AlertTerminated(alertID string, at time.Time) Notification {
	return Notification{
		Name: NotificationAlertTerminated,
		Fields: map[string]any{
			FieldAlertID: alertID,
			FieldMessage: TerminatedMessage,
		},
		At: at,
	}
}

// EmergencyEscalated builds the emergency_message notification.
func EmergencyEscalated(alertID, advisory string, at time.Time) Notification {
	return Notification{
		Name: NotificationEmergency,
		Fields: map[string]any{
			FieldAlertID: alertID,
			FieldMessage: EscalationPrefix + advisory,
		},
		At: at,
	}
}

// StatusUpdate builds the greeting sent to a new observer.
func StatusUpdate(message string, at time.Time) Notification {
	return Notification{
		Name:   NotificationStatusUpdate,
		Fields: map[string]any{FieldMessage: message},
		At:     at,
	}
}

// Message returns the message field, or an empty string.
func (n Notification) Message() string {
	s, _ := n.Fields[FieldMessage].(string)

	return s
}
