package alert

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sos-beacon/internal/coordinator"
	domain "github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/notify"
)

type testEnv struct {
	client AlertServiceClient
	coord  *coordinator.Coordinator
	hub    *notify.Hub
}

// newTestEnv serves a real coordinator over an in-memory connection.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hub := notify.NewHub()
	coord := coordinator.New(coordinator.Settings{
		TriggerPhrase:     "Help! Help!",
		CancelPhrase:      "alert message off.",
		EscalationWindow:  time.Minute,
		EscalationCommand: "BEEP_6_TIMES",
		Fallback:          "fallback",
	}, nil, nil, hub)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterAlertServiceServer(srv, NewServer(coord, hub))

	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		coord.Close(context.Background())
		hub.Close()
	})

	return &testEnv{
		client: NewAlertServiceClient(conn),
		coord:  coord,
		hub:    hub,
	}
}

func withActor(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, "tester@localhost")
}

// TestServer_RaiseAlert_Validation ensures empty messages are rejected.
func TestServer_RaiseAlert_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(coordinator.New(coordinator.Settings{}, nil, nil, nil), notify.NewHub())

	_, err := s.RaiseAlert(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RaiseAlert(context.Background(), wrapperspb.String("   "))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_Roundtrip raises, reads and cancels an alert over the wire.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := withActor(context.Background())

	state, err := env.client.GetAlertState(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, string(domain.PhaseIdle), state.GetFields()[FieldPhase].GetStringValue())
	require.NotContains(t, state.GetFields(), domain.FieldAlertID)

	state, err = env.client.RaiseAlert(ctx, wrapperspb.String("console test"))
	require.NoError(t, err)
	require.Equal(t, string(coordinator.OutcomeRaised), state.GetFields()[FieldOutcome].GetStringValue())
	require.Equal(t, string(domain.PhaseActive), state.GetFields()[FieldPhase].GetStringValue())
	require.Equal(t, "console test", state.GetFields()[domain.FieldMessage].GetStringValue())

	state, err = env.client.RaiseAlert(ctx, wrapperspb.String("again"))
	require.NoError(t, err)
	require.Equal(t, string(coordinator.OutcomeDuplicate), state.GetFields()[FieldOutcome].GetStringValue())
	require.Equal(t, "console test", state.GetFields()[domain.FieldMessage].GetStringValue())

	state, err = env.client.CancelAlert(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, string(coordinator.OutcomeResolved), state.GetFields()[FieldOutcome].GetStringValue())
	require.Equal(t, string(domain.PhaseIdle), state.GetFields()[FieldPhase].GetStringValue())

	state, err = env.client.CancelAlert(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Equal(t, string(coordinator.OutcomeIgnored), state.GetFields()[FieldOutcome].GetStringValue())
}

// TestServer_Watch streams the greeting followed by lifecycle notifications.
func TestServer_Watch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(withActor(context.Background()), 10*time.Second)
	defer cancel()

	stream, err := env.client.Watch(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	greeting, err := stream.Recv()
	require.NoError(t, err)

	n := NotificationFromStruct(greeting)
	require.Equal(t, domain.NotificationStatusUpdate, n.Name)
	require.Equal(t, domain.ConnectedMessage, n.Message())
	require.False(t, n.At.IsZero())

	env.coord.HandleLine(ctx, "Help! Help! from watch test")

	raised, err := stream.Recv()
	require.NoError(t, err)

	n = NotificationFromStruct(raised)
	require.Equal(t, domain.NotificationAlertRaised, n.Name)
	require.Equal(t, "Help! Help! from watch test", n.Message())
	require.Equal(t, "fallback", n.Fields[domain.FieldAdvisory])

	env.coord.HandleLine(ctx, "alert message off.")

	terminated, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, domain.NotificationAlertTerminated, NotificationFromStruct(terminated).Name)
}

// TestServer_WatchEndsOnShutdown reports Unavailable once the hub closes.
func TestServer_WatchEndsOnShutdown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := env.client.Watch(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	env.hub.Close()

	_, err = stream.Recv()
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// TestActorFromContext falls back to a placeholder without metadata.
func TestActorFromContext(t *testing.T) {
	t.Parallel()

	require.Equal(t, unknownActor, actorFromContext(context.Background()))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ActorMetadataKey, "ops@desk"))
	require.Equal(t, "ops@desk", actorFromContext(ctx))
}
