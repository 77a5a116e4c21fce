// Package transport carries authorize and budget requests over HTTP. The
// contract callers rely on: a non-nil error means the service was not
// reached (connection, DNS, timeout); any HTTP status, however unwelcome,
// comes back as a Result for the classifier to judge.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read. Decision and
// budget bodies are small; anything larger is not ours.
const maxResponseBytes = 1 << 20

// Result is a completed HTTP exchange.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Sender is the capability the gate consumes. One call, one attempt; retry
// policy belongs to the caller.
type Sender interface {
	Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Result, error)
}

// Client implements Sender over net/http with an optional outbound rate
// limiter and client spans.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles outbound calls.
func WithRateLimit(r rate.Limit, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithTracer enables a client span per send.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = tracer }
}

// NewClient creates a Client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs one HTTP exchange.
func (c *Client) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit wait: %w", err)
		}
	}

	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, "spendgate.transport.send",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("http.method", method)),
		)
		defer span.End()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("transport: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	return &Result{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
