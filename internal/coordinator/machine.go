package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// newMachine builds the transition table of the alert slot.
//
//	idle   --trigger-->  active   (open alert, arm timer)
//	idle   --cancel-->   ignored
//	idle   --timeout-->  ignored  (stale timer)
//	active --trigger-->  ignored  (duplicate)
//	active --cancel-->   idle     (disarm timer)
//	active --timeout-->  idle     only for the alert the timer was armed for
func (c *Coordinator) newMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachineWithMode(alert.PhaseIdle, stateless.FiringImmediate)

	sm.Configure(alert.PhaseIdle).
		Permit(alert.EventTrigger, alert.PhaseActive).
		Ignore(alert.EventCancel).
		Ignore(alert.EventTimeout)

	sm.Configure(alert.PhaseActive).
		OnEntryFrom(alert.EventTrigger, c.openAlert).
		OnExit(c.closeAlert).
		Ignore(alert.EventTrigger).
		Permit(alert.EventCancel, alert.PhaseIdle).
		Permit(alert.EventTimeout, alert.PhaseIdle, c.timerIsCurrent).
		Ignore(alert.EventTimeout, c.timerIsStale)

	return sm
}

// openAlert records the new alert and arms its escalation timer.
func (c *Coordinator) openAlert(ctx context.Context, args ...any) error {
	ev := eventFromArgs(args)
	now := c.now()

	// A leftover timer can only exist after a bookkeeping bug; never let two run.
	if c.timer.Cancel() {
		logger.WarnKV(ctx, "Stale escalation timer cancelled", "alert_id", c.timer.alertID)
	}

	opened := &alert.Alert{
		ID:       uuid.NewString(),
		Message:  ev.Line,
		OpenedAt: now,
		Deadline: now.Add(c.settings.EscalationWindow),
	}

	timerCtx := context.WithoutCancel(ctx)

	c.current = opened
	c.timer = scheduleEscalation(c.settings.EscalationWindow, opened.ID, func(alertID string) {
		c.Handle(timerCtx, alert.Event{
			Kind:    alert.EventTimeout,
			AlertID: alertID,
			Source:  SourceTimer,
			At:      c.now(),
		})
	})

	return nil
}

// closeAlert disarms the timer and clears the slot.
func (c *Coordinator) closeAlert(context.Context, ...any) error {
	c.timer.Cancel()
	c.timer = nil
	c.current = nil

	return nil
}

func (c *Coordinator) timerIsCurrent(_ context.Context, args ...any) bool {
	ev := eventFromArgs(args)

	return c.current != nil && ev.AlertID == c.current.ID
}

func (c *Coordinator) timerIsStale(ctx context.Context, args ...any) bool {
	return !c.timerIsCurrent(ctx, args...)
}

func eventFromArgs(args []any) alert.Event {
	if len(args) > 0 {
		if ev, ok := args[0].(alert.Event); ok {
			return ev
		}
	}

	return alert.Event{At: time.Now()}
}
