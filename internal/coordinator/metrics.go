package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oshokin/sos-beacon/internal/advisory"
	"github.com/oshokin/sos-beacon/internal/domain/alert"
)

const metricsNamespace = "sos"

// Sink labels used by sos_sink_failures_total.
const (
	sinkCommand      = "command"
	sinkNotification = "notification"
)

// Metrics are the coordinator's prometheus collectors.
type Metrics struct {
	lines            *prometheus.CounterVec
	raised           prometheus.Counter
	cancelled        prometheus.Counter
	escalated        prometheus.Counter
	duplicates       prometheus.Counter
	active           prometheus.Gauge
	advisoryFailures *prometheus.CounterVec
	advisoryDuration *prometheus.HistogramVec
	sinkFailures     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg, including a nil *prometheus.Registry, leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if r, ok := reg.(*prometheus.Registry); ok && r == nil {
		reg = nil
	}

	factory := promauto.With(reg)

	return &Metrics{
		lines: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Inbound events by classification.",
		}, []string{"kind"}),
		raised: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts opened.",
		}),
		cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_cancelled_total",
			Help:      "Alerts closed by the user before escalation.",
		}),
		escalated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_escalated_total",
			Help:      "Alerts that reached the end of the escalation window.",
		}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "duplicate_triggers_total",
			Help:      "Trigger events ignored because an alert was already open.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alert_active",
			Help:      "1 while an alert is open.",
		}),
		advisoryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "advisory_failures_total",
			Help:      "Advisory calls replaced by fallback text, by failure kind.",
		}, []string{"kind"}),
		advisoryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "advisory_duration_seconds",
			Help:      "Latency of advisory calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"purpose"}),
		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sink_failures_total",
			Help:      "Best-effort deliveries that failed, by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) observeEvent(kind alert.EventKind) {
	m.lines.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeAdvisory(purpose string, took time.Duration, err error) {
	m.advisoryDuration.WithLabelValues(purpose).Observe(took.Seconds())

	if err != nil {
		m.advisoryFailures.WithLabelValues(advisory.Kind(err)).Inc()
	}
}

func (m *Metrics) setActive(active bool) {
	if active {
		m.active.Set(1)
	} else {
		m.active.Set(0)
	}
}
