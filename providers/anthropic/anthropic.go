// Package anthropic implements core/turnctl.Client against Anthropic's
// Messages API (streaming only), grounded on original_source/src/api.rs's
// AnthropicClient and the teacher's own Anthropic provider for transport
// idiom (header construction, SSE scanning, observability spans).
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/basher83/forgeflare/core/errclass"
	"github.com/basher83/forgeflare/internal/utils"
	"github.com/basher83/forgeflare/providers/observability"
)

const (
	// defaultBaseURL is the canonical base URL for Anthropic's Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/messages"

	// anthropicVersion is the required anthropic-version header value.
	anthropicVersion = "2023-06-01"

	// maxResponseBodySize caps how much of a non-2xx error body is read
	// into memory before being wrapped as a fault.
	maxResponseBodySize = 1 * 1024 * 1024
)

// Client implements core/turnctl.Client for Anthropic's Messages API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	obs     observability.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithAPIKey overrides the key read from ANTHROPIC_API_KEY.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithBaseURL overrides the API base URL, e.g. to target a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.http = httpClient }
}

// WithObservability attaches a structured logger for trace-level output.
func WithObservability(obs observability.Logger) Option {
	return func(c *Client) { c.obs = obs }
}

// New returns a Client initialized from ANTHROPIC_API_KEY and
// ANTHROPIC_API_BASE_URL (defaulting to api.anthropic.com when unset).
func New(opts ...Option) *Client {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: c.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

func (c *Client) logf(ctx context.Context, format string, args ...any) {
	if c.obs == nil {
		return
	}
	c.obs.Trace(ctx, fmt.Sprintf(format, args...))
}

// postStream sends the streaming Messages request and returns the open
// response body for SSE reading. Unlike internal/utils.DoPostStream, a
// non-2xx response is reported as an *errclass.Fault carrying the status
// code and any Retry-After header, which the retry loop needs structurally
// rather than flattened into a single error string.
func (c *Client) postStream(ctx context.Context, req anthropicRequest) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, errclass.NewEncoding(fmt.Errorf("ANTHROPIC_API_KEY is not set"))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errclass.NewEncoding(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errclass.NewEncoding(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for _, h := range c.buildHeaders() {
		httpReq.Header.Set(h.Key, h.Value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer utils.CloseWithLog(resp.Body)
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, errclass.NewHTTP(resp.StatusCode, retryAfter, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(errBody)))
	}

	return resp, nil
}

// parseRetryAfter parses an HTTP Retry-After header value as a count of
// seconds, capped at 60. Non-numeric (HTTP-date) values and empty headers
// yield 0 (absent).
func parseRetryAfter(value string) int {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return errclass.CappedRetryAfter(seconds)
}
