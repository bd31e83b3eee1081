// Package transport issues the outbound HTTP calls operation handlers make
// against vendor APIs.
//
// Every call is a single attempt: there are no retries, no backoff and no
// internal timeout. The caller's context is the only cancellation. Non-2xx
// responses become *errors.TransportError values carrying the vendor's
// response body verbatim.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/pkg/errors"
)

// maxLoggedBody bounds bodies written to trace logs.
const maxLoggedBody = 4096

var tracer = otel.Tracer("github.com/tombee/connectkit/internal/operation/transport")

// HTTPDoer is the subset of *http.Client the transport needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authorizer sets authentication on an outgoing request.
// *oauth.Credentials implements it.
type Authorizer interface {
	SetAuthHeader(r *http.Request)
}

// Request describes one vendor call.
type Request struct {
	// Method is the HTTP method. Required.
	Method string

	// URL is absolute, or relative to the client's base URL.
	URL string

	// Headers are set on the request and override client defaults.
	Headers map[string]string

	// Body is encoded by type: nil sends no body; []byte, string and
	// io.Reader are sent as is; url.Values is form encoded; anything else
	// is JSON encoded. Content-Type is set to match unless Headers sets it.
	Body any

	// Auth, when set, authenticates the request.
	Auth Authorizer
}

// Response is a raw vendor response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// URL is the resolved request URL.
	URL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithBaseURL resolves relative request URLs against base.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// Client dispatches vendor requests. It is safe for concurrent use.
type Client struct {
	client    HTTPDoer
	logger    *slog.Logger
	userAgent string
	baseURL   string
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		client:    http.DefaultClient,
		logger:    log.Discard(),
		userAgent: "connectkit",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.WithComponent(c.logger, "transport")
	return c
}

// Request is shorthand for Do without an Authorizer.
func (c *Client) Request(ctx context.Context, method, rawURL string, headers map[string]string, body any) (any, error) {
	return c.Do(ctx, &Request{Method: method, URL: rawURL, Headers: headers, Body: body})
}

// Do sends req and returns the parsed body of a 2xx response: decoded JSON,
// the raw text for non-JSON content, or {"success": true} for 204 and empty
// bodies. Any other status yields a *errors.TransportError.
func (c *Client) Do(ctx context.Context, req *Request) (any, error) {
	_, body, err := c.Call(ctx, req)
	return body, err
}

// Call is Do that also returns the raw response, for vendors that report
// failures inside 2xx bodies.
func (c *Client) Call(ctx context.Context, req *Request) (*Response, any, error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil, statusError(&Request{Method: req.Method, URL: resp.URL}, resp)
	}
	return resp, parseBody(resp), nil
}

// Execute performs exactly one HTTP exchange and returns the raw response
// for every status. It fails only when no response was received, or when a
// 2xx body could not be read. For non-2xx responses an unreadable body is
// reported as empty.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "http.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", req.Method)),
	)
	defer span.End()

	resp, err := c.execute(ctx, span, req)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	recordRequest(req.Method, status, time.Since(start).Seconds())

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			log.Error(err),
		)
		return nil, err
	}
	if status >= 400 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	c.logger.Debug("request completed",
		slog.String("method", req.Method),
		slog.String("url", req.URL),
		slog.Int("status", status),
		slog.Int64(log.DurationKey, time.Since(start).Milliseconds()),
	)
	if c.logger.Enabled(ctx, log.LevelTrace) {
		log.Trace(ctx, c.logger, "response body", slog.String("body", truncate(resp.Body)))
	}
	return resp, nil
}

func (c *Client) execute(ctx context.Context, span trace.Span, req *Request) (*Response, error) {
	if req.Method == "" {
		return nil, &errors.TransportError{Type: errors.TransportInvalidReq, URL: req.URL, Cause: fmt.Errorf("method is required")}
	}

	target := c.resolve(req.URL)
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("URL must be absolute: %q", target)
		}
		return nil, &errors.TransportError{Type: errors.TransportInvalidReq, Method: req.Method, URL: target, Cause: err}
	}
	span.SetAttributes(attribute.String("server.address", u.Host))

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &errors.TransportError{Type: errors.TransportInvalidReq, Method: req.Method, URL: target, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &errors.TransportError{Type: errors.TransportInvalidReq, Method: req.Method, URL: target, Cause: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Auth != nil {
		req.Auth.SetAuthHeader(httpReq)
	}

	if b, ok := req.Body.([]byte); ok && c.logger.Enabled(ctx, log.LevelTrace) {
		log.Trace(ctx, c.logger, "request body", slog.String("body", truncate(b)))
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, networkError(ctx, &Request{Method: req.Method, URL: target}, err)
	}
	defer httpResp.Body.Close()

	resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header, URL: target}

	raw, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		if httpResp.StatusCode >= 200 && httpResp.StatusCode <= 299 {
			return nil, &errors.TransportError{
				Type:       errors.TransportConnection,
				StatusCode: httpResp.StatusCode,
				Method:     req.Method,
				URL:        target,
				Cause:      fmt.Errorf("failed to read response body: %w", readErr),
			}
		}
		raw = nil
	}
	resp.Body = raw
	return resp, nil
}

func (c *Client) resolve(raw string) string {
	if c.baseURL == "" || strings.Contains(raw, "://") {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	case io.Reader:
		return b, "application/octet-stream", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// parseBody interprets a 2xx body.
func parseBody(resp *Response) any {
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0 {
		return map[string]any{"success": true}
	}

	contentType := resp.Headers.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	isJSON := mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")

	if isJSON || (contentType == "" && looksLikeJSON(resp.Body)) {
		var v any
		if err := json.Unmarshal(resp.Body, &v); err == nil {
			return v
		}
	}
	return string(resp.Body)
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
