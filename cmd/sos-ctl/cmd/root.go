package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/service/client"
	"github.com/oshokin/sos-beacon/internal/service/watcher"
	"github.com/oshokin/sos-beacon/internal/version"
)

// errInvalidLogLevel is returned for an unknown --log-level value.
var errInvalidLogLevel = errors.New("invalid log level")

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// serverAddress overrides server_addr from the configuration.
	serverAddress string
	// logLevel is the minimum level of log entries.
	logLevel string
	// retry repeats failed calls until the server answers.
	retry bool

	// rootCmd is the control client of sos-server.
	rootCmd = &cobra.Command{
		Use:   "sos-ctl",
		Short: "Inspect and control a running sos-server.",
		Long: `Control client of the SOS alert coordinator.

Reads the server address and call timeout from the configuration file; the
--server flag overrides the address. Results are printed as JSON.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return errInvalidLogLevel
			}

			logger.SetLevel(level)

			return nil
		},
		SilenceUsage: true,
	}

	// statusCmd prints the alert state.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the current alert state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Status(ctx, clientOptions(cmd, ""))
		},
	}

	// cancelCmd closes the open alert.
	cancelCmd = &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the open alert as if the user pressed cancel on the device.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Cancel(ctx, clientOptions(cmd, ""))
		},
	}

	// raiseCmd opens an alert.
	raiseCmd = &cobra.Command{
		Use:   "raise <message>",
		Short: "Raise an alert with the given message.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			return client.Raise(ctx, clientOptions(cmd, strings.Join(args, " ")))
		},
	}

	// watchCmd follows the live notification stream.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print notifications as they happen, reconnecting when the stream breaks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Out:           cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the sos-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func clientOptions(cmd *cobra.Command, message string) *client.Options {
	return &client.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Message:       message,
		Retry:         retry,
		Out:           cmd.OutOrStdout(),
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&serverAddress, "server", "s", "", "sos-server address, overrides server_addr")
	flags.StringVarP(&logLevel, "log-level", "l", "warn", "debug, info, warn or error")

	cancelCmd.Flags().BoolVarP(&retry, "retry", "r", false, "retry until the server answers")
	raiseCmd.Flags().BoolVarP(&retry, "retry", "r", false, "retry until the server answers")

	rootCmd.AddCommand(statusCmd, cancelCmd, raiseCmd, watchCmd)
}
