package coordinator

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestNewMetrics_Registerers covers untyped nil, nil registry and a real registry.
func TestNewMetrics_Registerers(t *testing.T) {
	t.Parallel()

	var nilRegistry *prometheus.Registry

	require.NotPanics(t, func() { NewMetrics(nil) })
	require.NotPanics(t, func() { NewMetrics(nilRegistry) })

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.raised.Inc()

	count, err := testutil.GatherAndCount(reg, "sos_alerts_raised_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
