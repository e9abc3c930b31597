// Package apiclient talks to the citizen portal REST API. Every response is
// normalized once here: callers get either a decoded payload or one of the
// typed errors of the errors package.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/log"
	"go.pilab.hu/citizenportal/tracing"
)

// DefaultBaseURL is used when the client is created without a base URL.
const DefaultBaseURL = "http://localhost:5000/api"

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const maxBodySize = 8 << 20

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Client is a JSON-over-HTTP client for the portal API. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds every request. Zero disables the client-side timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client for baseURL, e.g. "http://localhost:5000/api".
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// do performs one request and decodes a success envelope into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	ctx, span := tracing.Tracer.Start(ctx, "apiclient."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, perrors.Message(err))
		}
		span.End()
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return perrors.NewTransportError(op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	fields := log.Fields{"op": op, "method": method, "path": path, "request_id": requestID}
	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "portal request failed", fields, log.Fields{"error": err.Error()})
		return perrors.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	fields["status"] = resp.StatusCode
	fields["duration_ms"] = time.Since(started).Milliseconds()
	c.logger.Debug(ctx, "portal request", fields)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return perrors.NewTransportError(op, err)
	}

	return decodeEnvelope(op, resp.StatusCode, raw, out)
}

// decodeEnvelope maps a raw response to a payload or a typed error.
func decodeEnvelope(op string, status int, raw []byte, out any) error {
	ok := status >= 200 && status <= 299

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	if envErr == nil && env.Status == statusError {
		if msg := strings.TrimSpace(env.Message); msg != "" {
			return perrors.NewApplicationError(op, status, msg)
		}
		if ok {
			return perrors.NewApplicationError(op, status, "Request failed")
		}
	}

	if !ok {
		return perrors.NewStatusError(op, status)
	}

	if envErr != nil {
		return perrors.NewMalformedResponse(op, status, envErr)
	}
	if env.Status != statusSuccess {
		return perrors.NewMalformedResponse(op, status, fmt.Errorf("unexpected status %q", env.Status))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return perrors.NewMalformedResponse(op, status, err)
	}
	return nil
}

func userPath(prefix, userID string, rest ...string) string {
	parts := append([]string{prefix, url.PathEscape(userID)}, rest...)
	return "/" + strings.Join(parts, "/")
}
