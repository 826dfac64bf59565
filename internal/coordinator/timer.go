package coordinator

import (
	"sync/atomic"
	"time"
)

// escalationTimer is the single pending escalation of an open alert.
type escalationTimer struct {
	// alertID is the alert the timer was armed for.
	alertID string
	// timer runs the callback after the escalation window.
	timer *time.Timer
	// cancelled short-circuits a callback that already started when Cancel ran.
	cancelled atomic.Bool
}

// scheduleEscalation arms a one-shot timer that calls fire(alertID) after d
// unless cancelled first.
func scheduleEscalation(d time.Duration, alertID string, fire func(alertID string)) *escalationTimer {
	t := &escalationTimer{alertID: alertID}

	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}

		fire(alertID)
	})

	return t
}

// Cancel disarms the timer and reports whether the callback was prevented from
// starting. It is safe on a nil timer, after firing and when called repeatedly.
//
// A callback that already started is not interrupted; the coordinator rejects
// it because the alert it was armed for is no longer open.
func (t *escalationTimer) Cancel() bool {
	if t == nil {
		return false
	}

	t.cancelled.Store(true)

	return t.timer.Stop()
}
