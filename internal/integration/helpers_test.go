package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/service/common"
	"github.com/oshokin/sos-beacon/internal/service/server"
)

// testAdvice is what the fake advisory service answers.
const testAdvice = "Send the nearest patrol to the last known position."

// testServer is a running sos-server with its addresses.
type testServer struct {
	grpcAddr   string
	httpAddr   string
	configPath string
}

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// startAdvisory serves a chat-completions endpoint that always answers testAdvice.
func startAdvisory(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": testAdvice}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

// startServer runs sos-server without a device until the test ends.
func startServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	ts := &testServer{
		grpcAddr:   reservePort(t),
		httpAddr:   reservePort(t),
		configPath: filepath.Join(t.TempDir(), "settings.yaml"),
	}

	// Test names are unique within the package, so parallel tests never share the variable.
	keyEnv := "SOS_IT_ADVISORY_KEY_" + strings.ToUpper(strings.ReplaceAll(t.Name(), "/", "_"))

	//nolint:usetesting // t.Setenv is not allowed in parallel tests.
	require.NoError(t, os.Setenv(keyEnv, "test-key"))

	cfg := &config.Config{
		ServerAddress: ts.grpcAddr,
		HTTPAddress:   ts.httpAddr,
		Timeout:       3 * time.Second,
		LogLevel:      "warn",
	}
	cfg.Advisory.URL = startAdvisory(t)
	cfg.Advisory.APIKeyEnv = keyEnv
	cfg.Advisory.Timeout = 2 * time.Second

	if mutate != nil {
		mutate(cfg)
	}

	require.NoError(t, config.Save(ts.configPath, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:    ts.configPath,
			ListenAddress: ts.grpcAddr,
		})
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("sos-server did not stop")
		}
	})

	// Wait until the gRPC server answers.
	client := dial(t, ts)

	require.Eventually(t, func() bool {
		_, err := client.GetAlertState(context.Background())

		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	return ts
}

// dial connects a client that is closed when the test ends.
func dial(t *testing.T, ts *testServer) *common.Client {
	t.Helper()

	client, err := common.Dial(context.Background(), ts.grpcAddr,
		common.WithCallTimeout(3*time.Second),
		common.WithActor("tester@integration"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
