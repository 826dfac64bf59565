package coordinator

import (
	"context"
	"time"

	"github.com/oshokin/sos-beacon/internal/advisory"
	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Advisory purposes, used as metric labels.
const (
	purposeInitial    = "initial"
	purposeEscalation = "escalation"
)

// announce emits alert_event for a freshly opened alert.
func (c *Coordinator) announce(ctx context.Context, a *alert.Alert) {
	ctx = logger.WithKV(ctx, "alert_id", a.ID)

	c.metrics.raised.Inc()
	logger.InfoKV(ctx, "Alert raised", "message", a.Message, "deadline", a.Deadline)

	advice := c.advise(ctx, purposeInitial, initialPrompt(a))
	c.notify(ctx, alert.AlertRaised(a.ID, a.Message, advice, c.now()))
}

// resolve emits alert_terminated and the optional acknowledgment command.
func (c *Coordinator) resolve(ctx context.Context, a *alert.Alert, ev alert.Event) {
	ctx = logger.WithKV(ctx, "alert_id", a.ID)

	c.metrics.cancelled.Inc()
	logger.InfoKV(ctx, "Alert cancelled", "source", ev.Source, "open_for", c.now().Sub(a.OpenedAt))

	c.notify(ctx, alert.AlertTerminated(a.ID, c.now()))

	if c.settings.ResolveCommand != "" {
		c.command(ctx, c.settings.ResolveCommand)
	}
}

// escalate asks for deployment advice, signals the device and emits emergency_message.
func (c *Coordinator) escalate(ctx context.Context, a *alert.Alert) {
	ctx = logger.WithKV(ctx, "alert_id", a.ID)

	c.metrics.escalated.Inc()
	logger.WarnKV(ctx, "Alert escalated", "message", a.Message, "window", c.settings.EscalationWindow)

	advice := c.advise(ctx, purposeEscalation, escalationPrompt(a, c.settings.EscalationWindow))

	c.command(ctx, c.settings.EscalationCommand)
	c.notify(ctx, alert.EmergencyEscalated(a.ID, advice, c.now()))
}

// advise returns advisory text or the fallback. It never fails.
func (c *Coordinator) advise(ctx context.Context, purpose, prompt string) string {
	if c.advisor == nil {
		return c.settings.Fallback
	}

	callCtx := ctx

	if c.settings.AdvisoryTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, c.settings.AdvisoryTimeout)
		defer cancel()
	}

	started := time.Now()
	text, err := c.advisor.Generate(callCtx, prompt)
	c.metrics.observeAdvisory(purpose, time.Since(started), err)

	if err != nil {
		logger.WarnKV(ctx, "Advisory unavailable, using fallback",
			"purpose", purpose,
			"error_kind", advisory.Kind(err),
			"error", err,
		)

		return c.settings.Fallback
	}

	return text
}

func (c *Coordinator) command(ctx context.Context, command string) {
	if c.commands == nil {
		return
	}

	if err := c.commands.Send(ctx, command); err != nil {
		c.metrics.sinkFailures.WithLabelValues(sinkCommand).Inc()
		logger.ErrorKV(ctx, "Command delivery failed", "command", command, "error", err)

		return
	}

	logger.InfoKV(ctx, "Command sent", "command", command)
}

func (c *Coordinator) notify(ctx context.Context, n alert.Notification) {
	if c.sink == nil {
		return
	}

	if err := c.sink.Publish(ctx, n); err != nil {
		c.metrics.sinkFailures.WithLabelValues(sinkNotification).Inc()
		logger.ErrorKV(ctx, "Notification delivery failed", "event", n.Name, "error", err)

		return
	}

	logger.DebugKV(ctx, "Notification published", "event", n.Name)
}
