package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/alert"
	"github.com/oshokin/sos-beacon/internal/domain/alert"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/service/common"
)

// Options controls the watcher.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// RetryInterval is the pause before reconnecting after the stream ends.
	RetryInterval time.Duration
	// Out receives one JSON line per notification, os.Stdout when nil.
	Out io.Writer
}

// DefaultRetryInterval defines the pause between reconnect attempts.
const DefaultRetryInterval = 2 * time.Second

// Run prints notifications until ctx is canceled, reconnecting on stream errors.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-ctl.watch")

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	client, serverAddress, err := common.Connect(ctx, opts.ConfigPath, opts.ServerAddress)
	if err != nil {
		return err
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching notifications", "server_address", serverAddress)

	for {
		err = client.Watch(ctx, func(n alert.Notification) error {
			logger.InfoKV(ctx, "Notification received", "event", n.Name, "message", n.Message())

			return printNotification(out, n)
		})

		if ctx.Err() != nil {
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		}

		logger.WarnKV(ctx, "Watch stream ended, reconnecting", "error", err, "retry_in", opts.RetryInterval)

		retry := time.NewTimer(opts.RetryInterval)

		select {
		case <-ctx.Done():
			retry.Stop()
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-retry.C:
		}
	}
}

// printNotification writes n as a single JSON line.
func printNotification(out io.Writer, n alert.Notification) error {
	data, err := protojson.Marshal(api.NotificationToStruct(n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if _, err = fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("print notification: %w", err)
	}

	return nil
}
