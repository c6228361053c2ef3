// Package client is the authenticated request/response gateway to the TopStack
// platform HTTP API.
//
// A Client is built once from a Config and shared. Construction validates the
// configuration and derives the authentication headers; it performs no network
// I/O. Every call is bounded by the configured timeout and routed through the
// envelope codec, so callers get either the decoded envelope or one of the typed
// errors from package errors:
//
//   - *errors.ConnectionError: the host could not be reached
//   - *errors.TimeoutError: the call exceeded its timeout
//   - *errors.DecodeError, *errors.SchemaError: the response is malformed
//   - *errors.APIError: the platform rejected the call; Code and Message are verbatim
//
// The client never retries. Whether a call is safe to repeat depends on the
// endpoint, so retry policy belongs to the caller (see pkg/retry).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c360/topstack/envelope"
	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/metric"
	"github.com/c360/topstack/pkg/cache"
	"github.com/c360/topstack/pkg/tlsutil"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// Client issues authenticated calls against the platform API. It is safe for
// concurrent use; it holds no per-call mutable state.
type Client struct {
	baseURL    *url.URL
	headers    http.Header
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metric.Metrics
	responses  *cache.Cache[*envelope.Envelope]
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for per-call debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latency in the registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Client) {
		c.metrics = registry.CoreMetrics()
	}
}

// WithHTTPClient replaces the underlying HTTP client. The Config timeout still
// bounds every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithResponseCache serves repeated successful GET calls from c until their
// entries expire. Other methods and failed calls are never cached.
func WithResponseCache(c *cache.Cache[*envelope.Envelope]) Option {
	return func(cl *Client) {
		cl.responses = c
	}
}

// New validates cfg and builds a Client. It fails with *errors.ConfigError on
// bad input and never touches the network.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := cfg.parseBaseURL()
	if err != nil {
		return nil, err
	}
	headers, err := cfg.authHeaders()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, &errors.ConfigError{Field: "Timeout", Reason: "must not be negative"}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if base.Scheme == "https" || !cfg.TLS.IsZero() {
		tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.TLS)
		if err != nil {
			return nil, &errors.ConfigError{Field: "TLS", Reason: err.Error()}
		}
		transport.TLSClientConfig = tlsConfig
	}

	c := &Client{
		baseURL: base,
		headers: headers,
		timeout: timeout,
		httpClient: &http.Client{
			Transport: transport,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the platform address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get issues a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*envelope.Envelope, error) {
	return c.Call(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*envelope.Envelope, error) {
	return c.Call(ctx, http.MethodPost, path, nil, body)
}

// Call issues one request. GET and DELETE send query as URL parameters and take
// no body; other methods send body as JSON. On a non-success code Call returns
// both the envelope and an *errors.APIError.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body any) (*envelope.Envelope, error) {
	method = strings.ToUpper(method)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	op := method + " " + path
	module := moduleOf(path)

	var key string
	if c.responses != nil && method == http.MethodGet {
		key = path + "?" + query.Encode()
		if cached, ok := c.responses.Get(key); ok {
			if c.metrics != nil {
				c.metrics.RecordRequest(module, method, metric.OutcomeCached, 0)
			}
			c.logger.DebugContext(ctx, "platform call served from cache", "op", op)
			return cloneEnvelope(cached), nil
		}
	}

	start := time.Now()
	env, outcome, err := c.do(ctx, method, path, query, body)
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordRequest(module, method, outcome, elapsed)
	}
	if err != nil {
		c.logger.DebugContext(ctx, "platform call failed",
			"op", op, "outcome", outcome, "duration", elapsed, "error", err)
		return env, err
	}
	c.logger.DebugContext(ctx, "platform call",
		"op", op, "status", env.HTTPStatus, "code", env.Code, "duration", elapsed)
	if key != "" {
		_, _ = c.responses.Set(key, cloneEnvelope(env))
	}
	return env, nil
}

// cloneEnvelope copies env including its data bytes, so cached entries and
// callers never share a buffer.
func cloneEnvelope(env *envelope.Envelope) *envelope.Envelope {
	dup := *env
	dup.Data = bytes.Clone(env.Data)
	return &dup
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*envelope.Envelope, string, error) {
	op := method + " " + path

	var payload io.Reader
	if body != nil {
		if method == http.MethodGet || method == http.MethodDelete {
			return nil, metric.OutcomeDecodeError, errors.WrapInvalid(
				fmt.Errorf("%s takes query parameters, not a body: %w", method, errors.ErrInvalidRequest),
				"Client", "Call", op)
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, metric.OutcomeDecodeError, errors.WrapInvalid(err, "Client", "Call", "encode body for "+op)
		}
		payload = bytes.NewReader(raw)
	}

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, u.String(), payload)
	if err != nil {
		return nil, metric.OutcomeDecodeError, errors.WrapInvalid(err, "Client", "Call", "build request for "+op)
	}
	req.Header = c.headers.Clone()
	if payload == nil {
		req.Header.Del("Content-Type")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.failureOutcome(ctx, callCtx), c.transportError(ctx, callCtx, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.failureOutcome(ctx, callCtx), c.transportError(ctx, callCtx, op, err)
	}

	env, err := envelope.Decode(path, raw)
	if err != nil {
		if !isSuccess(resp.StatusCode) {
			return nil, metric.OutcomeAPIError, &errors.APIError{
				Code:       strconv.Itoa(resp.StatusCode),
				Message:    http.StatusText(resp.StatusCode),
				HTTPStatus: resp.StatusCode,
				Path:       path,
			}
		}
		return nil, metric.OutcomeDecodeError, err
	}
	env.HTTPStatus = resp.StatusCode

	if apiErr := env.Err(); apiErr != nil {
		return env, metric.OutcomeAPIError, apiErr
	}
	if !isSuccess(resp.StatusCode) {
		// A success code over a failed transport status is still a failure
		return env, metric.OutcomeAPIError, &errors.APIError{
			Code:       strconv.Itoa(resp.StatusCode),
			Message:    firstNonEmpty(env.Message, http.StatusText(resp.StatusCode)),
			HTTPStatus: resp.StatusCode,
			Path:       path,
		}
	}
	return env, metric.OutcomeOK, nil
}

// transportError separates our own timeout from caller cancellation and from
// failures to reach the host.
func (c *Client) transportError(parent, callCtx context.Context, op string, err error) error {
	if parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded) {
		return errors.Wrap(parent.Err(), "Client", "Call", op)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &errors.TimeoutError{Operation: op, Err: context.DeadlineExceeded}
	}
	return &errors.ConnectionError{Target: c.baseURL.Host, Err: err}
}

func (c *Client) failureOutcome(parent, callCtx context.Context) string {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(parent.Err(), context.Canceled) {
		return metric.OutcomeTimeout
	}
	return metric.OutcomeConnectionError
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// moduleOf returns the first path segment, which names the platform module.
func moduleOf(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
