package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(url, key string, timeout time.Duration) *Client {
	return NewClient(Options{
		URL:          url,
		Model:        "test-model",
		APIKey:       key,
		SystemPrompt: "You are a test.",
		Timeout:      timeout,
	})
}

// TestGenerate_Success checks the request shape and completion extraction.
func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)
		require.Equal(t, "Initial alert received.", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Send a patrol.  "}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, "secret", time.Second).Generate(context.Background(), "Initial alert received.")
	require.NoError(t, err)
	require.Equal(t, "Send a patrol.", text)
}

// TestGenerate_Failures maps every failure mode to its sentinel.
func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		kind    string
	}{
		{
			name: "bad_status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
			},
			want: ErrBadStatus,
			kind: "bad_status",
		},
		{
			name: "not_json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			want: ErrMalformedResponse,
			kind: "malformed_response",
		},
		{
			name: "no_choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			want: ErrMalformedResponse,
			kind: "malformed_response",
		},
		{
			name: "empty_content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" "}}]}`))
			},
			want: ErrMalformedResponse,
			kind: "malformed_response",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			want: ErrTimeout,
			kind: "timeout",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL, "secret", 100*time.Millisecond).Generate(context.Background(), "p")
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, tc.kind, Kind(err))
		})
	}
}

// TestGenerate_MissingKey never touches the network.
func TestGenerate_MissingKey(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "", time.Second).Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Equal(t, "missing_api_key", Kind(err))
	require.False(t, called)
}

// TestGenerate_TransportFailure reports an unreachable endpoint as a transport error.
func TestGenerate_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "secret", time.Second).Generate(context.Background(), "p")
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, "transport", Kind(err))
}

// TestKind covers the nil and unknown cases.
func TestKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", Kind(nil))
	require.Equal(t, "other", Kind(errors.New("boom")))
}
