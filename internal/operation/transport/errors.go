package transport

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/tombee/connectkit/pkg/errors"
)

// statusError builds the TransportError for a non-2xx response.
func statusError(req *Request, resp *Response) *errors.TransportError {
	return &errors.TransportError{
		Type:       classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		RawBody:    string(resp.Body),
		Method:     req.Method,
		URL:        req.URL,
		RequestID:  requestID(resp.Headers),
	}
}

// classifyStatus maps an HTTP status to a transport error type.
func classifyStatus(status int) errors.TransportErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.TransportAuth
	case status == http.StatusTooManyRequests:
		return errors.TransportRateLimit
	case status >= 500:
		return errors.TransportServer
	default:
		return errors.TransportClient
	}
}

// networkError wraps a failure that produced no response.
func networkError(ctx context.Context, req *Request, err error) *errors.TransportError {
	errType := errors.TransportConnection
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		errType = errors.TransportCancelled
	}
	return &errors.TransportError{
		Type:   errType,
		Method: req.Method,
		URL:    req.URL,
		Cause:  err,
	}
}

func requestID(h http.Header) string {
	for _, key := range []string{"X-Request-Id", "X-Amzn-Requestid", "X-Slack-Req-Id", "Atl-Traceid"} {
		if v := h.Get(key); v != "" {
			return v
		}
	}
	return ""
}
