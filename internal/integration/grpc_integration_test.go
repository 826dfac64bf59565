package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/alert"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/service/common"
)

var errStopWatch = errors.New("stop watch")

// watch collects notifications in the background until the test ends.
func watch(t *testing.T, client *common.Client) <-chan alert.Notification {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan alert.Notification, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = client.Watch(ctx, func(n alert.Notification) error {
			select {
			case out <- n:
				return nil
			case <-ctx.Done():
				return errStopWatch
			}
		})
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return out
}

func next(t *testing.T, ch <-chan alert.Notification) alert.Notification {
	t.Helper()

	select {
	case n := <-ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")

		return alert.Notification{}
	}
}

// TestGRPC_RaiseWatchCancel runs a full alert lifecycle through the real daemon.
func TestGRPC_RaiseWatchCancel(t *testing.T) {
	t.Parallel()

	ts := startServer(t, nil)
	client := dial(t, ts)
	ctx := context.Background()

	notifications := watch(t, client)

	greeting := next(t, notifications)
	require.Equal(t, alert.NotificationStatusUpdate, greeting.Name)
	require.Equal(t, alert.ConnectedMessage, greeting.Message())

	state, err := client.RaiseAlert(ctx, "Help! Help! from console")
	require.NoError(t, err)
	require.Equal(t, "raised", state.GetFields()[api.FieldOutcome].GetStringValue())
	require.Equal(t, "active", state.GetFields()[api.FieldPhase].GetStringValue())

	raised := next(t, notifications)
	require.Equal(t, alert.NotificationAlertRaised, raised.Name)
	require.Equal(t, "Help! Help! from console", raised.Message())
	require.Equal(t, testAdvice, raised.Fields[alert.FieldAdvisory])

	state, err = client.RaiseAlert(ctx, "again")
	require.NoError(t, err)
	require.Equal(t, "duplicate", state.GetFields()[api.FieldOutcome].GetStringValue())

	state, err = client.CancelAlert(ctx)
	require.NoError(t, err)
	require.Equal(t, "resolved", state.GetFields()[api.FieldOutcome].GetStringValue())

	terminated := next(t, notifications)
	require.Equal(t, alert.NotificationAlertTerminated, terminated.Name)
	require.Equal(t, alert.TerminatedMessage, terminated.Message())

	state, err = client.GetAlertState(ctx)
	require.NoError(t, err)
	require.Equal(t, "idle", state.GetFields()[api.FieldPhase].GetStringValue())
}

// TestGRPC_Escalation lets a short window elapse without a cancel.
func TestGRPC_Escalation(t *testing.T) {
	t.Parallel()

	ts := startServer(t, func(cfg *config.Config) {
		cfg.Alert.EscalationWindow = 300 * time.Millisecond
	})
	client := dial(t, ts)
	ctx := context.Background()

	notifications := watch(t, client)
	next(t, notifications)

	_, err := client.RaiseAlert(ctx, "Help! Help! nobody answers")
	require.NoError(t, err)

	require.Equal(t, alert.NotificationAlertRaised, next(t, notifications).Name)

	emergency := next(t, notifications)
	require.Equal(t, alert.NotificationEmergency, emergency.Name)
	require.True(t, strings.HasPrefix(emergency.Message(), alert.EscalationPrefix))
	require.Contains(t, emergency.Message(), testAdvice)

	state, err := client.GetAlertState(ctx)
	require.NoError(t, err)
	require.Equal(t, "idle", state.GetFields()[api.FieldPhase].GetStringValue())

	// Cancelling after escalation is a no-op.
	state, err = client.CancelAlert(ctx)
	require.NoError(t, err)
	require.Equal(t, "ignored", state.GetFields()[api.FieldOutcome].GetStringValue())
}

// TestGRPC_FallbackWithoutAPIKey substitutes the fallback text.
func TestGRPC_FallbackWithoutAPIKey(t *testing.T) {
	t.Parallel()

	ts := startServer(t, func(cfg *config.Config) {
		cfg.Advisory.APIKeyEnv = "SOS_IT_UNSET_ADVISORY_KEY"
		cfg.Advisory.Fallback = "No advisory, follow the checklist."
	})
	client := dial(t, ts)

	notifications := watch(t, client)
	next(t, notifications)

	_, err := client.RaiseAlert(context.Background(), "Help! Help!")
	require.NoError(t, err)

	raised := next(t, notifications)
	require.Equal(t, "No advisory, follow the checklist.", raised.Fields[alert.FieldAdvisory])
}
