package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/internal/operation/transport"
)

// issueSummaryFilter reshapes a full issue document.
const issueSummaryFilter = `{
  key,
  summary: .fields.summary,
  status: .fields.status.name,
  assignee: .fields.assignee.displayName
}`

var getIssueInput = operation.Object(
	operation.Required("issue_key", operation.String().Describe("Issue key, e.g. PROJ-123")),
)

var stringOrList = operation.Union(operation.String(), operation.Array(operation.String()))

var searchIssuesInput = operation.Object(
	operation.Required("jql", operation.String().Describe("JQL query")),
	operation.Prop("max_results", operation.Integer().Describe("Maximum issues to return").Default(50)),
	operation.Prop("fields", stringOrList.Describe("Field or fields to return").Default([]any{"summary", "status", "assignee"})),
	operation.Prop("next_page_token", operation.Optional(operation.String())),
)

var createIssueInput = operation.Object(
	operation.Required("project_key", operation.String()),
	operation.Required("summary", operation.String()),
	operation.Prop("issue_type", operation.String().Default("Task")),
	operation.Prop("description", operation.Optional(operation.String().Describe("Plain text description"))),
	operation.Prop("labels", operation.Optional(operation.Array(operation.String()))),
)

func (c *Connector) getIssue(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	path, err := apiPath(creds, "issue/%s", url.PathEscape(in.String("issue_key")))
	if err != nil {
		return nil, err
	}

	var issue map[string]any
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &issue); err != nil {
		return nil, err
	}
	return operation.JSON(issue)
}

type searchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  *struct {
				Name string `json:"name"`
			} `json:"status"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
		} `json:"fields"`
	} `json:"issues"`
	NextPageToken string `json:"nextPageToken"`
	IsLast        bool   `json:"isLast"`
}

func (c *Connector) searchIssues(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	path, err := apiPath(creds, "search/jql")
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"jql":        in.String("jql"),
		"maxResults": in.Int("max_results"),
		"fields":     in.Strings("fields"),
	}
	if in.Has("next_page_token") {
		body["nextPageToken"] = in.String("next_page_token")
	}

	var resp searchResponse
	if err := c.do(ctx, creds, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	issues := make([]map[string]any, len(resp.Issues))
	for i, is := range resp.Issues {
		item := map[string]any{"key": is.Key, "summary": is.Fields.Summary}
		if is.Fields.Status != nil {
			item["status"] = is.Fields.Status.Name
		}
		if is.Fields.Assignee != nil {
			item["assignee"] = is.Fields.Assignee.DisplayName
		}
		issues[i] = item
	}

	result := map[string]any{"issues": issues, "is_last": resp.IsLast}
	if resp.NextPageToken != "" {
		result["next_page_token"] = resp.NextPageToken
	}
	return operation.JSON(result)
}

func (c *Connector) createIssue(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	path, err := apiPath(creds, "issue")
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"project":   map[string]any{"key": in.String("project_key")},
		"summary":   in.String("summary"),
		"issuetype": map[string]any{"name": in.String("issue_type")},
	}
	if in.Has("description") {
		fields["description"] = textDocument(in.String("description"))
	}
	if labels := in.Strings("labels"); len(labels) > 0 {
		fields["labels"] = labels
	}

	var created struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Self string `json:"self"`
	}
	if err := c.do(ctx, creds, http.MethodPost, path, map[string]any{"fields": fields}, &created); err != nil {
		return nil, err
	}

	result := map[string]any{"id": created.ID, "key": created.Key}
	if site := creds.ProviderString(FieldSiteURL); site != "" {
		result["url"] = strings.TrimRight(site, "/") + "/browse/" + created.Key
	}
	return operation.JSON(result)
}

// textDocument wraps plain text in an Atlassian Document Format document,
// one paragraph per line.
func textDocument(text string) map[string]any {
	var paragraphs []any
	for _, line := range strings.Split(text, "\n") {
		p := map[string]any{"type": "paragraph"}
		if line != "" {
			p["content"] = []any{map[string]any{"type": "text", "text": line}}
		}
		paragraphs = append(paragraphs, p)
	}
	return map[string]any{"type": "doc", "version": 1, "content": paragraphs}
}

func decodeJSON(resp *transport.Response, out any) error {
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}
