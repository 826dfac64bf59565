package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/device"
	"github.com/oshokin/sos-beacon/internal/service/server"
	"github.com/oshokin/sos-beacon/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the status page address.
	httpAddress string
	// devicePort overrides the serial port.
	devicePort string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the coordinator.
	rootCmd = &cobra.Command{
		Use:   "sos-server [listen-address]",
		Short: "Run the SOS alert coordinator.",
		Long: `Starts the coordinator that listens to the panic button on a serial port.

A line containing the trigger phrase opens an alert and notifies observers with
advisory text. A line containing the cancel phrase closes it. When nobody cancels
within the escalation window the board is told to beep and observers receive an
emergency message.

Observers connect over gRPC (sos-ctl watch) or open the status page served on the
HTTP address, which also exposes server-sent events and prometheus metrics.
Only the port from server_addr is used for listening (e.g., :7001).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:7001).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
				DevicePort:    devicePort,
				LogLevel:      logLevel,
			}

			return server.Run(ctx, options)
		},
	}

	// portsCmd lists the serial ports of this machine.
	portsCmd = &cobra.Command{
		Use:   "ports",
		Short: "List serial ports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := device.Ports()
			if err != nil {
				return err
			}

			if len(ports) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found.")

				return nil
			}

			for _, port := range ports {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), port)
			}

			return nil
		},
	}
)

// Execute runs the sos-server CLI and exits with non-zero status on error.
func Execute() {
	gin.SetMode(gin.ReleaseMode)
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&httpAddress, "http", "", `status page address, "-" disables it`)
	rootCmd.Flags().StringVarP(&devicePort, "port", "p", "", "serial port of the button board")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "debug, info, warn or error")

	rootCmd.AddCommand(portsCmd)
}
