package alert

import "time"

// Phase is the lifecycle phase of the alert slot.
type Phase string

const (
	// PhaseIdle means no alert is open and no escalation is scheduled.
	PhaseIdle Phase = "idle"
	// PhaseActive means an alert is open and its escalation timer is armed.
	PhaseActive Phase = "active"
)

// Alert is an open alert.
type Alert struct {
	// ID identifies the alert for its whole lifetime, including the escalation timer armed for it.
	ID string
	// Message is the raw line that triggered the alert.
	Message string
	// OpenedAt is when the trigger was accepted.
	OpenedAt time.Time
	// Deadline is when the alert escalates unless cancelled first.
	Deadline time.Time
}

// Clone returns a copy of the alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Snapshot is a read-only view of the alert slot at a point in time.
type Snapshot struct {
	// Phase is the current lifecycle phase.
	Phase Phase
	// Alert is the open alert, nil when idle.
	Alert *Alert
	// UpdatedAt is when the phase last changed.
	UpdatedAt time.Time
}

// IsActive reports whether an alert is open.
func (s *Snapshot) IsActive() bool {
	return s != nil && s.Phase == PhaseActive
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	return &Snapshot{
		Phase:     s.Phase,
		Alert:     s.Alert.Clone(),
		UpdatedAt: s.UpdatedAt,
	}
}
