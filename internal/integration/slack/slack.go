// Package slack exposes Slack Web API calls as connectkit operations.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/internal/operation/transport"
	"github.com/tombee/connectkit/pkg/errors"
)

// DefaultBaseURL is the Slack Web API root.
const DefaultBaseURL = "https://slack.com/api"

// Connector implements api.Connector for Slack.
type Connector struct {
	http *transport.Client
}

// New creates the Slack connector.
func New(cfg api.Config) api.Connector {
	return &Connector{http: cfg.Transport("slack", DefaultBaseURL)}
}

func (c *Connector) Name() string { return "slack" }

// Profile returns Slack's OAuth v2 endpoints. Slack joins scopes with commas
// and reports the workspace and bot identity in the token response, where
// they are kept as provider fields (team, bot_user_id, authed_user).
func (c *Connector) Profile() oauth.ProviderProfile {
	return oauth.ProviderProfile{
		Name:           "slack",
		AuthURL:        "https://slack.com/oauth/v2/authorize",
		TokenURL:       "https://slack.com/api/oauth.v2.access",
		Scopes:         []string{"chat:write", "channels:read", "groups:read"},
		ScopeSeparator: ",",
	}
}

// Register adds the Slack operations.
func (c *Connector) Register(r *operation.Registry) error {
	ops := []struct {
		name    string
		input   *operation.Schema
		handler operation.Handler
		opts    []operation.Option
	}{
		{"slack.post_message", postMessageInput, c.postMessage, []operation.Option{
			operation.WithDescription("Send a message to a channel, optionally as a thread reply"),
			operation.WithCategory("messages"),
			operation.WithTags("write"),
		}},
		{"slack.delete_message", deleteMessageInput, c.deleteMessage, []operation.Option{
			operation.WithDescription("Delete a message by channel and timestamp"),
			operation.WithCategory("messages"),
			operation.WithTags("write", "destructive"),
		}},
		{"slack.list_channels", listChannelsInput, c.listChannels, []operation.Option{
			operation.WithDescription("List conversations in the workspace"),
			operation.WithCategory("channels"),
			operation.WithTags("read", "paginated"),
		}},
		{"slack.find_channel", findChannelInput, c.findChannel, []operation.Option{
			operation.WithDescription("Look up a channel by name"),
			operation.WithCategory("channels"),
			operation.WithTags("read"),
		}},
	}

	for _, op := range ops {
		if err := r.Register(op.name, op.input, op.handler, op.opts...); err != nil {
			return err
		}
	}
	return nil
}

// apiResponse is the envelope every Slack Web API response shares.
type apiResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// call performs one Slack API call and decodes a successful body into out.
// Slack answers most failures with HTTP 200 and ok:false; those become
// TransportErrors carrying the body verbatim.
func (c *Connector) call(ctx context.Context, creds *oauth.Credentials, method, path string, query url.Values, body, out any) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, _, err := c.http.Call(ctx, &transport.Request{Method: method, URL: path, Body: body, Auth: creds})
	if err != nil {
		return err
	}

	var status apiResponse
	if err := json.Unmarshal(resp.Body, &status); err != nil {
		return &errors.TransportError{
			Type:       errors.TransportClient,
			StatusCode: resp.StatusCode,
			RawBody:    string(resp.Body),
			Method:     method,
			URL:        resp.URL,
			Cause:      fmt.Errorf("unexpected Slack response: %w", err),
		}
	}
	if !status.OK {
		return apiError(method, resp, status.Error)
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode Slack response: %w", err)
		}
	}
	return nil
}

func apiError(method string, resp *transport.Response, code string) *errors.TransportError {
	errType := errors.TransportClient
	switch code {
	case "invalid_auth", "not_authed", "token_revoked", "token_expired", "account_inactive", "missing_scope":
		errType = errors.TransportAuth
	case "ratelimited":
		errType = errors.TransportRateLimit
	}
	return &errors.TransportError{
		Type:       errType,
		StatusCode: resp.StatusCode,
		RawBody:    string(resp.Body),
		Method:     method,
		URL:        resp.URL,
		RequestID:  resp.Headers.Get("X-Slack-Req-Id"),
	}
}

func (c *Connector) post(ctx context.Context, creds *oauth.Credentials, path string, body, out any) error {
	return c.call(ctx, creds, http.MethodPost, path, nil, body, out)
}
