package alert

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sos-beacon/internal/coordinator"
	domain "github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/notify"
)

// Coordinator abstracts the lifecycle operations the transport depends on.
type Coordinator interface {
	Snapshot() *domain.Snapshot
	Raise(ctx context.Context, message, source string) coordinator.Outcome
	Cancel(ctx context.Context, source string) coordinator.Outcome
}

// Subscriber hands out notification subscriptions.
type Subscriber interface {
	Subscribe(buffer int) *notify.Subscription
}

// unknownActor is logged when the caller did not identify itself.
const unknownActor = "<unknown>"

// Server implements the AlertService gRPC API.
type Server struct {
	// coordinator owns the alert lifecycle.
	coordinator Coordinator
	// hub feeds Watch streams.
	hub Subscriber
}

var _ AlertServiceServer = (*Server)(nil)

// NewServer wires the coordinator and the notification hub into a gRPC handler.
func NewServer(c Coordinator, hub Subscriber) *Server {
	return &Server{
		coordinator: c,
		hub:         hub,
	}
}

// GetAlertState returns the current phase and the open alert, if any.
func (s *Server) GetAlertState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return SnapshotToStruct(s.coordinator.Snapshot()), nil
}

// CancelAlert closes the open alert as if the device had sent the cancel phrase.
func (s *Server) CancelAlert(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx = logger.WithKV(ctx, "actor", actorFromContext(ctx))

	outcome := s.coordinator.Cancel(ctx, coordinator.SourceRPC)
	logger.InfoKV(ctx, "Remote cancel handled", "outcome", outcome)

	return s.stateWithOutcome(outcome), nil
}

// RaiseAlert opens an alert with the given message as if the device had sent a trigger.
func (s *Server) RaiseAlert(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	message := strings.TrimSpace(req.GetValue())
	if message == "" {
		return nil, status.Error(codes.InvalidArgument, "message is required")
	}

	ctx = logger.WithKV(ctx, "actor", actorFromContext(ctx))

	outcome := s.coordinator.Raise(ctx, message, coordinator.SourceRPC)
	logger.InfoKV(ctx, "Remote raise handled", "outcome", outcome)

	return s.stateWithOutcome(outcome), nil
}

// Watch sends a greeting and then every notification until the client leaves
// or the server shuts down.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := logger.WithKV(stream.Context(), "actor", actorFromContext(stream.Context()))

	sub := s.hub.Subscribe(notify.DefaultBuffer)
	defer sub.Close()

	logger.InfoKV(ctx, "Watcher connected")

	greeting := domain.StatusUpdate(domain.ConnectedMessage, time.Now())
	if err := stream.Send(NotificationToStruct(greeting)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.InfoKV(ctx, "Watcher disconnected")

			return nil
		case n, ok := <-sub.C:
			if !ok {
				return status.Error(codes.Unavailable, "server is shutting down")
			}

			if err := stream.Send(NotificationToStruct(n)); err != nil {
				logger.WarnKV(ctx, "Watcher send failed", "error", err)

				return err
			}
		}
	}
}

func (s *Server) stateWithOutcome(outcome coordinator.Outcome) *structpb.Struct {
	state := SnapshotToStruct(s.coordinator.Snapshot())
	state.Fields[FieldOutcome] = structpb.NewStringValue(outcome.String())

	return state
}

// actorFromContext reads the caller identity from incoming metadata.
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return unknownActor
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return unknownActor
	}

	return values[0]
}
