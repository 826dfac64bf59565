//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/alert"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/domain/alert"
)

// Client wraps the gRPC AlertService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the sos-server.
	conn *grpc.ClientConn
	// api is the AlertService client stub.
	api api.AlertServiceClient

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
	// actor is sent with every call as x-sos-actor metadata.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor identifies the caller to the server.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errMessageRequired is returned when RaiseAlert is called without a message.
	errMessageRequired = errors.New("message must be provided")
)

// Dial establishes a gRPC connection to the sos-server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial sos server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewAlertServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetAlertState retrieves the current phase and open alert.
func (c *Client) GetAlertState(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetAlertState(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get alert state: %w", err)
	}

	return resp, nil
}

// CancelAlert closes the open alert.
func (c *Client) CancelAlert(ctx context.Context) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.CancelAlert(callCtx, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("cancel alert: %w", err)
	}

	return resp, nil
}

// RaiseAlert opens an alert with message.
func (c *Client) RaiseAlert(ctx context.Context, message string) (*structpb.Struct, error) {
	if message == "" {
		return nil, errMessageRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.RaiseAlert(callCtx, wrapperspb.String(message))
	if err != nil {
		return nil, fmt.Errorf("raise alert: %w", err)
	}

	return resp, nil
}

// Watch streams notifications to fn until ctx is done, the server ends the
// stream or fn returns an error. A clean end of stream returns io.EOF.
func (c *Client) Watch(ctx context.Context, fn func(alert.Notification) error) error {
	ctx, cancel := context.WithCancel(c.withActor(ctx))
	defer cancel()

	stream, err := c.api.Watch(ctx, new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("watch: %w", err)
		}

		if err = fn(api.NotificationFromStruct(msg)); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.withActor(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) withActor(ctx context.Context) context.Context {
	if c.actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, api.ActorMetadataKey, c.actor)
}
