package slack

import (
	"context"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
)

var postMessageInput = operation.Object(
	operation.Required("channel", operation.String().Describe("Channel ID, or a name such as #general")),
	operation.Required("text", operation.String().Describe("Message text (mrkdwn)")),
	operation.Prop("thread_ts", operation.Optional(operation.String().Describe("Timestamp of the parent message to reply to"))),
)

var deleteMessageInput = operation.Object(
	operation.Required("channel", operation.String()),
	operation.Required("ts", operation.String().Describe("Timestamp of the message to delete")),
)

type message struct {
	Type     string `json:"type,omitempty"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

func (c *Connector) postMessage(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	body := map[string]any{
		"channel": in.String("channel"),
		"text":    in.String("text"),
	}
	if in.Has("thread_ts") {
		body["thread_ts"] = in.String("thread_ts")
	}

	var resp struct {
		Channel string  `json:"channel"`
		TS      string  `json:"ts"`
		Message message `json:"message"`
	}
	if err := c.post(ctx, creds, "chat.postMessage", body, &resp); err != nil {
		return nil, err
	}

	result := map[string]any{
		"channel": resp.Channel,
		"ts":      resp.TS,
	}
	if resp.Message.ThreadTS != "" {
		result["thread_ts"] = resp.Message.ThreadTS
	}
	return operation.JSON(result)
}

func (c *Connector) deleteMessage(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	body := map[string]any{
		"channel": in.String("channel"),
		"ts":      in.String("ts"),
	}

	var resp struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}
	if err := c.post(ctx, creds, "chat.delete", body, &resp); err != nil {
		return nil, err
	}
	return operation.JSON(map[string]any{"deleted": true, "channel": resp.Channel, "ts": resp.TS})
}
