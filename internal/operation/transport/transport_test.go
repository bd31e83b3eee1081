package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/pkg/errors"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_NoContent(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	got, err := New().Request(context.Background(), http.MethodDelete, srv.URL+"/items/1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, got)
}

func TestDo_EmptySuccessBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
	})

	got, err := New().Request(context.Background(), http.MethodPost, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, got)
}

func TestDo_ParsesBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        any
	}{
		{"json object", "application/json; charset=utf-8", `{"id":"1","count":2}`, map[string]any{"id": "1", "count": float64(2)}},
		{"json array", "application/json", `[1,2]`, []any{float64(1), float64(2)}},
		{"vendor json type", "application/vnd.api+json", `{"ok":true}`, map[string]any{"ok": true}},
		{"plain text", "text/plain", "hello world", "hello world"},
		{"csv download", "text/csv", "a,b\n1,2\n", "a,b\n1,2\n"},
		{"json-looking text", "text/plain", `{"not":"parsed"}`, `{"not":"parsed"}`},
		{"declared json that is not", "application/json", "oops", "oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := New().Request(context.Background(), http.MethodGet, srv.URL, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// rawResponder answers with a fixed response and no Content-Type header.
type rawResponder struct {
	status int
	body   io.ReadCloser
	calls  atomic.Int32
}

func (r *rawResponder) Do(req *http.Request) (*http.Response, error) {
	r.calls.Add(1)
	return &http.Response{StatusCode: r.status, Header: http.Header{}, Body: r.body, Request: req}, nil
}

func TestDo_SniffsJSONWithoutContentType(t *testing.T) {
	doer := &rawResponder{status: http.StatusOK, body: io.NopCloser(strings.NewReader(` {"a":1}`))}

	got, err := New(WithHTTPClient(doer)).Request(context.Background(), http.MethodGet, "https://api.example.com/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got)
}

func TestDo_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.TransportErrorType
	}{
		{http.StatusBadRequest, errors.TransportClient},
		{http.StatusUnauthorized, errors.TransportAuth},
		{http.StatusForbidden, errors.TransportAuth},
		{http.StatusNotFound, errors.TransportClient},
		{http.StatusTooManyRequests, errors.TransportRateLimit},
		{http.StatusInternalServerError, errors.TransportServer},
		{http.StatusBadGateway, errors.TransportServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Request-Id", "req-9")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":"rate_limited"}`)
			})

			got, err := New().Request(context.Background(), http.MethodGet, srv.URL+"/v1/thing", nil, nil)
			assert.Nil(t, got)

			var te *errors.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, tt.wantType, te.Type)
			assert.Equal(t, `{"error":"rate_limited"}`, te.RawBody)
			assert.Equal(t, "req-9", te.RequestID)
			assert.Equal(t, http.MethodGet, te.Method)
			assert.Equal(t, srv.URL+"/v1/thing", te.URL)
			assert.Contains(t, err.Error(), `{"error":"rate_limited"}`)
		})
	}
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (failingBody) Close() error             { return nil }

func TestDo_UnreadableErrorBody(t *testing.T) {
	doer := &rawResponder{status: http.StatusBadGateway, body: failingBody{}}

	_, err := New(WithHTTPClient(doer)).Request(context.Background(), http.MethodGet, "https://api.example.com", nil, nil)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "", te.RawBody)
}

func TestDo_UnreadableSuccessBody(t *testing.T) {
	doer := &rawResponder{status: http.StatusOK, body: failingBody{}}

	_, err := New(WithHTTPClient(doer)).Request(context.Background(), http.MethodGet, "https://api.example.com", nil, nil)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportConnection, te.Type)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDo_SingleAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := New().Request(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_CancelledContext(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Request(ctx, http.MethodGet, srv.URL, nil, nil)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportCancelled, te.Type)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New().Request(context.Background(), http.MethodGet, addr, nil, nil)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportConnection, te.Type)
	assert.Zero(t, te.StatusCode)
}

func TestDo_InvalidRequest(t *testing.T) {
	client := New()

	_, err := client.Request(context.Background(), "", "https://api.example.com", nil, nil)
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportInvalidReq, te.Type)

	_, err = client.Request(context.Background(), http.MethodGet, "/relative/without/base", nil, nil)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportInvalidReq, te.Type)
}

func TestDo_RequestEncoding(t *testing.T) {
	type captured struct {
		contentType string
		body        string
	}

	tests := []struct {
		name            string
		body            any
		headers         map[string]string
		wantContentType string
		wantBody        string
	}{
		{"json", map[string]any{"channel": "C1"}, nil, "application/json", `{"channel":"C1"}`},
		{"form", url.Values{"a": {"1"}, "b": {"x y"}}, nil, "application/x-www-form-urlencoded", "a=1&b=x+y"},
		{"text", "plain body", nil, "text/plain; charset=utf-8", "plain body"},
		{"bytes with explicit type", []byte("<xml/>"), map[string]string{"Content-Type": "application/xml"}, "application/xml", "<xml/>"},
		{"reader", strings.NewReader("stream"), nil, "application/octet-stream", "stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				got = captured{contentType: r.Header.Get("Content-Type"), body: string(b)}
				w.WriteHeader(http.StatusNoContent)
			})

			_, err := New().Do(context.Background(), &Request{
				Method:  http.MethodPost,
				URL:     srv.URL,
				Headers: tt.headers,
				Body:    tt.body,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantContentType, got.contentType)
			if tt.wantContentType == "application/json" {
				assert.JSONEq(t, tt.wantBody, got.body)
			} else {
				assert.Equal(t, tt.wantBody, got.body)
			}
		})
	}
}

func TestDo_AuthAndBaseURL(t *testing.T) {
	var gotAuth, gotPath, gotUA string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	client := New(WithBaseURL(srv.URL+"/api/"), WithUserAgent("connectkit-test"))
	creds := &oauth.Credentials{AccessToken: "xoxb-1", TokenType: "bot"}

	got, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: "/conversations.list", Auth: creds})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, got)
	assert.Equal(t, "Bearer xoxb-1", gotAuth)
	assert.Equal(t, "/api/conversations.list", gotPath)
	assert.Equal(t, "connectkit-test", gotUA)
}

func TestCall_ReturnsRawResponse(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	})

	resp, body, err := New().Call(context.Background(), &Request{Method: http.MethodPost, URL: srv.URL + "/chat.postMessage"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":false,"error":"channel_not_found"}`, string(resp.Body))
	assert.Equal(t, srv.URL+"/chat.postMessage", resp.URL)
	assert.Equal(t, map[string]any{"ok": false, "error": "channel_not_found"}, body)

	srv500 := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	resp, body, err = New().Call(context.Background(), &Request{Method: http.MethodGet, URL: srv500.URL})
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, srv500.URL, te.URL)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Nil(t, body)
}

func TestExecute_ReturnsEveryStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "missing")
	})

	resp, err := New().Execute(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "missing", string(resp.Body))
}

func TestExecute_RecordsMetrics(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	counter := requestsTotal.WithLabelValues(http.MethodPatch, "4xx")
	before := testutil.ToFloat64(counter)

	_, err := New().Execute(context.Background(), &Request{Method: http.MethodPatch, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "error", statusClass(0))
}
