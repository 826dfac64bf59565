package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingAPIKey is returned without a network call when no key is configured.
	ErrMissingAPIKey = errors.New("advisory api key is not set")
	// ErrTimeout is returned when the call exceeds its deadline.
	ErrTimeout = errors.New("advisory request timed out")
	// ErrTransport is returned when the request could not be delivered.
	ErrTransport = errors.New("advisory transport failure")
	// ErrBadStatus is returned for non-2xx responses.
	ErrBadStatus = errors.New("advisory service returned unexpected status")
	// ErrMalformedResponse is returned when the payload has no usable completion.
	ErrMalformedResponse = errors.New("advisory response is malformed")
)

// maxErrorBody caps how much of an error response is quoted in the error message.
const maxErrorBody = 512

// Options configures a Client.
type Options struct {
	URL          string
	Model        string
	APIKey       string
	SystemPrompt string
	Timeout      time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client generates advisory text.
type Client struct {
	url          string
	model        string
	apiKey       string
	systemPrompt string
	timeout      time.Duration
	http         *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		url:          opts.URL,
		model:        opts.Model,
		apiKey:       opts.APIKey,
		systemPrompt: opts.SystemPrompt,
		timeout:      opts.Timeout,
		http:         httpClient,
	}
}

// Generate sends prompt as the user message and returns the first completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]chatMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}

	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal advisory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create advisory request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}

		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return "", fmt.Errorf("%w: %d: %s", ErrBadStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}

		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	text := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}

	return text, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }

	return errors.As(err, &netErr) && netErr.Timeout()
}

// Kind returns a short label for err, suitable for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingAPIKey):
		return "missing_api_key"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
