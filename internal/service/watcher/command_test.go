package watcher

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/domain/alert"
)

// TestPrintNotification writes one JSON object per line.
func TestPrintNotification(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, printNotification(&out, alert.AlertRaised("a1", "Help! Help!", "Go.", at)))
	require.NoError(t, printNotification(&out, alert.AlertTerminated("a1", at)))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.Equal(t, alert.NotificationAlertRaised, first["event"])
	require.Equal(t, "Help! Help!", first[alert.FieldMessage])
	require.Equal(t, "Go.", first[alert.FieldAdvisory])
	require.Equal(t, "2026-03-01T10:00:00Z", first["at"])
}
