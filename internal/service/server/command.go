package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/sos-beacon/internal/api/grpc/alert"
	"github.com/oshokin/sos-beacon/internal/api/web"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Options controls the sos-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// HTTPAddress overrides the status page address; "-" disables it.
	HTTPAddress string
	// DevicePort overrides the serial port from the settings file.
	DevicePort string
	// LogLevel overrides the log level from the settings file.
	LogLevel string
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// errInvalidLogLevel is returned for an unknown log level name.
	errInvalidLogLevel = errors.New("invalid log level")
)

// Run starts the coordinator with its device listener, gRPC and HTTP servers
// and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "sos-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(settings, opts)

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	if err = ensureSingleInstance(ps.Processes, os.Getpid()); err != nil {
		return err
	}

	lc := net.ListenConfig{}

	grpcListener, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	var httpListener net.Listener

	if settings.HTTPEnabled() {
		httpListener, err = lc.Listen(ctx, "tcp", settings.HTTPAddress)
		if err != nil {
			_ = grpcListener.Close()

			return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
		}
	}

	d := newDaemon(ctx, settings)

	logger.InfoKV(ctx, "SOS server listening",
		"listen_address", listenAddress,
		"http_address", settings.HTTPAddress,
		"device", d.link.Name(),
		"device_connected", d.link.Connected(),
		"escalation_window", settings.Alert.EscalationWindow,
	)

	return d.serve(ctx, grpcListener, httpListener)
}

// serve runs every long-lived goroutine of the daemon and tears them down in
// order once ctx is done: coordinator, hub, then the servers.
func (d *daemon) serve(ctx context.Context, grpcListener, httpListener net.Listener) error {
	grpcServer := grpc.NewServer()
	api.RegisterAlertServiceServer(grpcServer, api.NewServer(d.coordinator, d.hub))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return d.listenDevice(groupCtx)
	})

	group.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	if httpListener != nil {
		httpServer := web.New(web.Options{
			State:    d.coordinator,
			Hub:      d.hub,
			Gatherer: d.registry,
			Device:   d.link,
		})

		group.Go(func() error {
			return httpServer.Serve(groupCtx, httpListener)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		// Watch streams only end once the hub is closed, so it goes before GracefulStop.
		d.close(ctx)

		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})

	err := group.Wait()

	logger.Info(ctx, "SOS server stopped")

	return err
}

// applyOverrides copies command line overrides into settings.
func applyOverrides(settings *config.Config, opts *Options) {
	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.DevicePort != "" {
		settings.Device.Port = opts.DevicePort
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
