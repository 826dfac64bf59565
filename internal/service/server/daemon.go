package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oshokin/sos-beacon/internal/advisory"
	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/coordinator"
	"github.com/oshokin/sos-beacon/internal/device"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/notify"
)

// daemon holds the running components of sos-server.
type daemon struct {
	// link is the serial link, possibly disconnected.
	link *device.Link
	// hub fans notifications out to Watch and SSE clients.
	hub *notify.Hub
	// registry collects the daemon metrics.
	registry *prometheus.Registry
	// coordinator owns the alert lifecycle.
	coordinator *coordinator.Coordinator
}

// newDaemon builds the components from settings. A device that cannot be
// opened is replaced by a disconnected link so remote control keeps working.
func newDaemon(ctx context.Context, settings *config.Config) *daemon {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := notify.NewHub()
	registerHubMetrics(registry, hub)

	link := openDevice(ctx, settings.Device)

	if settings.Advisory.APIKey == "" {
		logger.WarnKV(ctx, "Advisory API key is not set, fallback text will be used",
			"env", settings.Advisory.APIKeyEnv)
	}

	advisor := advisory.NewClient(advisory.Options{
		URL:          settings.Advisory.URL,
		Model:        settings.Advisory.Model,
		APIKey:       settings.Advisory.APIKey,
		SystemPrompt: settings.Advisory.SystemPrompt,
		Timeout:      settings.Advisory.Timeout,
	})

	coord := coordinator.New(
		coordinatorSettings(settings),
		advisor,
		link,
		hub,
		coordinator.WithMetrics(coordinator.NewMetrics(registry)),
	)

	return &daemon{
		link:        link,
		hub:         hub,
		registry:    registry,
		coordinator: coord,
	}
}

// coordinatorSettings maps the configuration onto lifecycle parameters.
func coordinatorSettings(settings *config.Config) coordinator.Settings {
	return coordinator.Settings{
		TriggerPhrase:     settings.Alert.TriggerPhrase,
		CancelPhrase:      settings.Alert.CancelPhrase,
		EscalationWindow:  settings.Alert.EscalationWindow,
		EscalationCommand: settings.Alert.EscalationCommand,
		ResolveCommand:    settings.Alert.ResolveCommand,
		AdvisoryTimeout:   settings.Advisory.Timeout,
		Fallback:          settings.Advisory.Fallback,
	}
}

func openDevice(ctx context.Context, settings config.Device) *device.Link {
	if settings.Port == "" {
		logger.Info(ctx, "No device port configured, running without a device")

		return device.Disconnected()
	}

	link, err := device.Open(ctx, device.Settings{
		Port:        settings.Port,
		BaudRate:    settings.BaudRate,
		SettleDelay: settings.SettleDelay,
	})
	if err != nil {
		logger.WarnKV(ctx, "Device unavailable, running without a device", "port", settings.Port, "error", err)

		return device.Disconnected()
	}

	logger.InfoKV(ctx, "Device connected", "port", settings.Port, "baud_rate", settings.BaudRate)

	return link
}

// listenDevice feeds device lines to the coordinator. A lost link is logged,
// the daemon keeps serving remote clients.
func (d *daemon) listenDevice(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "device", d.link.Name())

	err := d.link.Listen(ctx, func(ctx context.Context, line string) {
		d.coordinator.HandleLine(ctx, line)
	})
	if err != nil {
		logger.ErrorKV(ctx, "Device link lost", "error", err)
	}

	return nil
}

// close stops the coordinator and the hub.
func (d *daemon) close(ctx context.Context) {
	d.coordinator.Close(ctx)
	d.hub.Close()

	if err := d.link.Close(); err != nil {
		logger.WarnKV(ctx, "Device close failed", "error", err)
	}
}

func registerHubMetrics(reg prometheus.Registerer, hub *notify.Hub) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sos",
		Name:      "observers",
		Help:      "Connected Watch and SSE clients.",
	}, func() float64 {
		return float64(hub.Subscribers())
	})

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "sos",
		Name:      "notifications_dropped_total",
		Help:      "Notifications skipped because an observer was too slow.",
	}, func() float64 {
		return float64(hub.Dropped())
	})
}
