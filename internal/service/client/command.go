package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/service/common"
)

// Options configures the sos-ctl one-shot commands.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Message is the alert text used by Raise.
	Message string
	// Retry repeats a failed call every RetryInterval until it succeeds or ctx ends.
	Retry bool
	// RetryInterval defaults to DefaultRetryInterval.
	RetryInterval time.Duration
	// Out receives the JSON result, os.Stdout when nil.
	Out io.Writer
}

// DefaultRetryInterval defines the delay between attempts when Retry is set.
const DefaultRetryInterval = 1 * time.Second

// call is a single RPC against the server.
type call func(ctx context.Context, client *common.Client) (*structpb.Struct, error)

// Status prints the current alert state.
func Status(ctx context.Context, opts *Options) error {
	return run(logger.WithName(ctx, "sos-ctl.status"), opts, getState)
}

// Cancel closes the open alert, the remote equivalent of the cancel phrase.
func Cancel(ctx context.Context, opts *Options) error {
	return run(logger.WithName(ctx, "sos-ctl.cancel"), opts, cancelAlert)
}

// Raise opens an alert with opts.Message.
func Raise(ctx context.Context, opts *Options) error {
	raise := func(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
		return c.RaiseAlert(ctx, opts.Message)
	}

	return run(logger.WithName(ctx, "sos-ctl.raise"), opts, raise)
}

func getState(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
	return c.GetAlertState(ctx)
}

func cancelAlert(ctx context.Context, c *common.Client) (*structpb.Struct, error) {
	return c.CancelAlert(ctx)
}

func run(ctx context.Context, opts *Options, do call) error {
	client, serverAddress, err := common.Connect(ctx, opts.ConfigPath, opts.ServerAddress)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling sos server", "server_address", serverAddress)

	result, err := attempt(ctx, opts, client, do)
	if err != nil {
		return err
	}

	return printState(opts.Out, result)
}

// attempt performs do once, or until it succeeds when opts.Retry is set.
func attempt(ctx context.Context, opts *Options, client *common.Client, do call) (*structpb.Struct, error) {
	result, err := do(ctx, client)
	if err == nil || !opts.Retry {
		return result, err
	}

	logger.ErrorKV(ctx, "Call failed, retrying", "error", err)

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			result, err = do(ctx, client)
			if err == nil {
				return result, nil
			}

			logger.ErrorKV(ctx, "Call failed, retrying", "error", err)
		}
	}
}

func printState(out io.Writer, state *structpb.Struct) error {
	if out == nil {
		out = os.Stdout
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if _, err = fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("print state: %w", err)
	}

	return nil
}
