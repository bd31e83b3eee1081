package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/pkg/errors"
)

var botCreds = &oauth.Credentials{AccessToken: "xoxb-test", TokenType: "bot"}

func setup(t *testing.T, handler http.HandlerFunc) *operation.Registry {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r := operation.NewRegistry()
	require.NoError(t, New(api.Config{BaseURL: srv.URL}).Register(r))
	return r
}

func decode(t *testing.T, env *operation.Envelope) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.PlainText()), &out))
	return out
}

func TestProfile(t *testing.T) {
	p := New(api.Config{}).Profile()
	require.NoError(t, p.Validate())
	assert.Equal(t, ",", p.ScopeSeparator)

	m, err := oauth.NewManager(p)
	require.NoError(t, err)
	req, err := m.BuildAuthorizationURL("123.456", "http://localhost:8765/callback", "st")
	require.NoError(t, err)
	assert.Contains(t, req.URL, "scope=chat%3Awrite%2Cchannels%3Aread%2Cgroups%3Aread")
}

func TestPostMessage(t *testing.T) {
	var got map[string]any
	var auth string
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/chat.postMessage", req.URL.Path)
		auth = req.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"channel":"C1","ts":"1700000000.000200","message":{"text":"hi","thread_ts":"1700000000.000100"}}`)
	})

	env, err := r.Invoke(context.Background(), "slack.post_message", map[string]any{
		"channel":   "C1",
		"text":      "hi",
		"thread_ts": "1700000000.000100",
	}, botCreds)
	require.NoError(t, err)

	assert.Equal(t, "Bearer xoxb-test", auth)
	assert.Equal(t, map[string]any{"channel": "C1", "text": "hi", "thread_ts": "1700000000.000100"}, got)
	assert.Equal(t, map[string]any{
		"channel":   "C1",
		"ts":        "1700000000.000200",
		"thread_ts": "1700000000.000100",
	}, decode(t, env))
}

func TestPostMessage_OKFalseBecomesTransportError(t *testing.T) {
	const body = `{"ok":false,"error":"channel_not_found"}`
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Slack-Req-Id", "req-42")
		_, _ = io.WriteString(w, body)
	})

	env, err := r.Invoke(context.Background(), "slack.post_message", map[string]any{"channel": "C404", "text": "hi"}, botCreds)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportClient, te.Type)
	assert.Equal(t, http.StatusOK, te.StatusCode)
	assert.Equal(t, body, te.RawBody)
	assert.Equal(t, "req-42", te.RequestID)
	assert.True(t, env.IsError)
	assert.Contains(t, env.PlainText(), "channel_not_found")
}

func TestAPIErrorTypes(t *testing.T) {
	tests := []struct {
		code string
		want errors.TransportErrorType
	}{
		{"invalid_auth", errors.TransportAuth},
		{"token_revoked", errors.TransportAuth},
		{"missing_scope", errors.TransportAuth},
		{"ratelimited", errors.TransportRateLimit},
		{"msg_too_long", errors.TransportClient},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r := setup(t, func(w http.ResponseWriter, req *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": tt.code})
			})
			_, err := r.Invoke(context.Background(), "slack.delete_message", map[string]any{"channel": "C1", "ts": "1.2"}, botCreds)
			var te *errors.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.want, te.Type)
		})
	}
}

func TestHTTPFailureKeepsRawBody(t *testing.T) {
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream unavailable")
	})

	_, err := r.Invoke(context.Background(), "slack.list_channels", nil, botCreds)
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errors.TransportServer, te.Type)
	assert.Equal(t, "upstream unavailable", te.RawBody)
}

func TestMissingCredentials(t *testing.T) {
	calls := 0
	r := setup(t, func(w http.ResponseWriter, req *http.Request) { calls++ })

	_, err := r.Invoke(context.Background(), "slack.list_channels", nil, nil)
	var authErr *errors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, calls)
}

func TestListChannels_Defaults(t *testing.T) {
	var query map[string][]string
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodGet, req.Method)
		query = req.URL.Query()
		_, _ = io.WriteString(w, `{"ok":true,"channels":[{"id":"C1","name":"general","num_members":12,"topic":{"value":"company news"}}],"response_metadata":{"next_cursor":"dXNlcjpVMDYx"}}`)
	})

	env, err := r.Invoke(context.Background(), "slack.list_channels", map[string]any{}, botCreds)
	require.NoError(t, err)

	assert.Equal(t, []string{"100"}, query["limit"])
	assert.Equal(t, []string{"public_channel"}, query["types"])
	assert.Equal(t, []string{"true"}, query["exclude_archived"])
	assert.NotContains(t, query, "cursor")

	out := decode(t, env)
	assert.Equal(t, "dXNlcjpVMDYx", out["next_cursor"])
	channels := out["channels"].([]any)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].(map[string]any)["name"])
	assert.Equal(t, "company news", channels[0].(map[string]any)["topic"])
}

func TestListChannels_RejectsUnknownType(t *testing.T) {
	calls := 0
	r := setup(t, func(w http.ResponseWriter, req *http.Request) { calls++ })

	_, err := r.Invoke(context.Background(), "slack.list_channels", map[string]any{
		"types": []any{"public_channel", "shared"},
	}, botCreds)

	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "types[1]", ve.Field)
	assert.Zero(t, calls)
}

func TestFindChannel(t *testing.T) {
	pages := map[string]string{
		"":   `{"ok":true,"channels":[{"id":"C1","name":"general"}],"response_metadata":{"next_cursor":"p2"}}`,
		"p2": `{"ok":true,"channels":[{"id":"C2","name":"Deploys","is_private":true}],"response_metadata":{"next_cursor":""}}`,
	}
	var cursors []string
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		cursor := req.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		_, _ = io.WriteString(w, pages[cursor])
	})

	t.Run("found on second page", func(t *testing.T) {
		cursors = nil
		env, err := r.Invoke(context.Background(), "slack.find_channel", map[string]any{"name": "#deploys"}, botCreds)
		require.NoError(t, err)
		out := decode(t, env)
		assert.Equal(t, "C2", out["id"])
		assert.Equal(t, true, out["is_private"])
		assert.Equal(t, []string{"", "p2"}, cursors)
	})

	t.Run("not found", func(t *testing.T) {
		env, err := r.Invoke(context.Background(), "slack.find_channel", map[string]any{"name": "random"}, botCreds)
		var nf *errors.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "channel", nf.Resource)
		assert.Equal(t, "random", nf.ID)
		assert.Contains(t, env.PlainText(), "channel not found: random")
	})
}

func TestDeleteMessage(t *testing.T) {
	r := setup(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/chat.delete", req.URL.Path)
		_, _ = io.WriteString(w, `{"ok":true,"channel":"C1","ts":"1.2"}`)
	})

	env, err := r.Invoke(context.Background(), "slack.delete_message", map[string]any{"channel": "C1", "ts": "1.2"}, botCreds)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"deleted": true, "channel": "C1", "ts": "1.2"}, decode(t, env))
}
