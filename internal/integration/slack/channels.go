package slack

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/pkg/errors"
)

// maxLookupPages bounds the pages find_channel walks.
const maxLookupPages = 20

var channelTypes = operation.Enum("public_channel", "private_channel", "mpim", "im")

var listChannelsInput = operation.Object(
	operation.Prop("limit", operation.Integer().Describe("Page size (1-1000)").Default(100)),
	operation.Prop("types", operation.Array(channelTypes).Describe("Conversation types to include").Default([]any{"public_channel"})),
	operation.Prop("exclude_archived", operation.Bool().Default(true)),
	operation.Prop("cursor", operation.Optional(operation.String().Describe("next_cursor from a previous page"))),
)

var findChannelInput = operation.Object(
	operation.Required("name", operation.String().Describe("Channel name, with or without the leading #")),
)

type channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
	NumMembers int    `json:"num_members,omitempty"`
	Topic      struct {
		Value string `json:"value"`
	} `json:"topic"`
}

func (ch channel) summary() map[string]any {
	return map[string]any{
		"id":          ch.ID,
		"name":        ch.Name,
		"is_private":  ch.IsPrivate,
		"is_archived": ch.IsArchived,
		"num_members": ch.NumMembers,
		"topic":       ch.Topic.Value,
	}
}

type listResponse struct {
	apiResponse
	Channels []channel `json:"channels"`
}

func (c *Connector) list(ctx context.Context, creds *oauth.Credentials, limit int, types []string, excludeArchived bool, cursor string) (*listResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("types", strings.Join(types, ","))
	q.Set("exclude_archived", strconv.FormatBool(excludeArchived))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp listResponse
	if err := c.call(ctx, creds, http.MethodGet, "conversations.list", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Connector) listChannels(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	resp, err := c.list(ctx, creds, in.Int("limit"), in.Strings("types"), in.Bool("exclude_archived"), in.String("cursor"))
	if err != nil {
		return nil, err
	}

	channels := make([]map[string]any, len(resp.Channels))
	for i, ch := range resp.Channels {
		channels[i] = ch.summary()
	}
	result := map[string]any{"channels": channels}
	if next := resp.Metadata.NextCursor; next != "" {
		result["next_cursor"] = next
	}
	return operation.JSON(result)
}

func (c *Connector) findChannel(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	name := strings.TrimPrefix(in.String("name"), "#")

	cursor := ""
	for page := 0; page < maxLookupPages; page++ {
		resp, err := c.list(ctx, creds, 1000, []string{"public_channel", "private_channel"}, true, cursor)
		if err != nil {
			return nil, err
		}
		for _, ch := range resp.Channels {
			if strings.EqualFold(ch.Name, name) {
				return operation.JSON(ch.summary())
			}
		}
		cursor = resp.Metadata.NextCursor
		if cursor == "" {
			break
		}
	}
	return nil, &errors.NotFoundError{Resource: "channel", ID: name}
}
