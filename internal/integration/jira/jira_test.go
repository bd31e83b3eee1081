package jira

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

var siteCreds = (&oauth.Credentials{AccessToken: "atl-1", TokenType: "Bearer"}).
	WithProviderField(FieldCloudID, "cloud-1").
	WithProviderField(FieldSiteURL, "https://acme.atlassian.net")

func newConnector(t *testing.T, handler http.HandlerFunc) (*Connector, *operation.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(api.Config{BaseURL: srv.URL}).(*Connector)
	r := operation.NewRegistry()
	require.NoError(t, c.Register(r))
	return c, r
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

	m, err := oauth.NewManager(p)
	require.NoError(t, err)
	req, err := m.BuildAuthorizationURL("client", "http://localhost:8765/callback", "st")
	require.NoError(t, err)
	assert.Contains(t, req.URL, "audience=api.atlassian.com")
	assert.Contains(t, req.URL, "prompt=consent")
	assert.Equal(t, oauth.TokenRequestJSON, p.TokenRequestFormat)
}

func TestResolveCloudID(t *testing.T) {
	c, _ := newConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token/accessible-resources", r.URL.Path)
		assert.Equal(t, "Bearer atl-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"cloud-9","url":"https://acme.atlassian.net","name":"acme","scopes":["read:jira-work"]}]`)
	})

	base := &oauth.Credentials{AccessToken: "atl-1", RefreshToken: "r", ProviderFields: map[string]any{"scope": "x"}}
	enriched, err := c.Enrich(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, "cloud-9", enriched.ProviderString(FieldCloudID))
	assert.Equal(t, "https://acme.atlassian.net", enriched.ProviderString(FieldSiteURL))
	assert.Equal(t, "r", enriched.RefreshToken)
	assert.Equal(t, "x", enriched.ProviderString("scope"))
	assert.Empty(t, base.ProviderString(FieldCloudID), "input bundle is not modified")
}

func TestResolveCloudID_NoSites(t *testing.T) {
	c, _ := newConnector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.ResolveCloudID(context.Background(), &oauth.Credentials{AccessToken: "atl-1"})
	var authErr *errors.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestGetIssue_ResultFilter(t *testing.T) {
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/ex/jira/cloud-1/rest/api/3/issue/PROJ-7", req.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "10007", "key": "PROJ-7", "self": "https://api.atlassian.com/...",
			"fields": {
				"summary": "Broken login",
				"status": {"name": "In Progress", "id": "3"},
				"assignee": {"displayName": "Sam Lee", "accountId": "abc"},
				"description": {"type": "doc"}
			}
		}`)
	})

	env, err := r.Invoke(context.Background(), "jira.get_issue", map[string]any{"issue_key": "PROJ-7"}, siteCreds)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"key":      "PROJ-7",
		"summary":  "Broken login",
		"status":   "In Progress",
		"assignee": "Sam Lee",
	}, decode(t, env))
}

func TestGetIssue_MissingCloudID(t *testing.T) {
	calls := 0
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) { calls++ })

	_, err := r.Invoke(context.Background(), "jira.get_issue", map[string]any{"issue_key": "PROJ-7"},
		&oauth.Credentials{AccessToken: "atl-1"})

	var authErr *errors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "cloud_id")
	assert.Zero(t, calls)
}

func TestGetIssue_NotFoundKeepsVendorBody(t *testing.T) {
	const body = `{"errorMessages":["Issue does not exist or you do not have permission to see it."],"errors":{}}`
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, body)
	})

	env, err := r.Invoke(context.Background(), "jira.get_issue", map[string]any{"issue_key": "NOPE-1"}, siteCreds)
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Equal(t, body, te.RawBody)
	assert.Contains(t, env.PlainText(), "Issue does not exist")
}

func TestSearchIssues(t *testing.T) {
	var got map[string]any
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/ex/jira/cloud-1/rest/api/3/search/jql", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		_, _ = io.WriteString(w, `{
			"issues": [
				{"key": "PROJ-1", "fields": {"summary": "One", "status": {"name": "Done"}}},
				{"key": "PROJ-2", "fields": {"summary": "Two", "assignee": {"displayName": "Ana"}}}
			],
			"nextPageToken": "tok-2",
			"isLast": false
		}`)
	})

	t.Run("defaults", func(t *testing.T) {
		env, err := r.Invoke(context.Background(), "jira.search_issues", map[string]any{"jql": "project = PROJ"}, siteCreds)
		require.NoError(t, err)

		assert.Equal(t, "project = PROJ", got["jql"])
		assert.Equal(t, float64(50), got["maxResults"])
		assert.Equal(t, []any{"summary", "status", "assignee"}, got["fields"])
		assert.NotContains(t, got, "nextPageToken")

		out := decode(t, env)
		assert.Equal(t, "tok-2", out["next_page_token"])
		assert.Equal(t, false, out["is_last"])
		assert.Equal(t, []any{
			map[string]any{"key": "PROJ-1", "summary": "One", "status": "Done"},
			map[string]any{"key": "PROJ-2", "summary": "Two", "assignee": "Ana"},
		}, out["issues"])
	})

	t.Run("single field string", func(t *testing.T) {
		_, err := r.Invoke(context.Background(), "jira.search_issues", map[string]any{
			"jql":             "assignee = currentUser()",
			"max_results":     10,
			"fields":          "summary",
			"next_page_token": "tok-2",
		}, siteCreds)
		require.NoError(t, err)

		assert.Equal(t, float64(10), got["maxResults"])
		assert.Equal(t, []any{"summary"}, got["fields"])
		assert.Equal(t, "tok-2", got["nextPageToken"])
	})

	t.Run("fields must be string or list", func(t *testing.T) {
		_, err := r.Invoke(context.Background(), "jira.search_issues", map[string]any{"jql": "x", "fields": 5}, siteCreds)
		var ve *errors.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "fields", ve.Field)
	})
}

func TestCreateIssue(t *testing.T) {
	var got map[string]any
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/ex/jira/cloud-1/rest/api/3/issue", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"10100","key":"PROJ-100","self":"https://api.atlassian.com/rest/api/3/issue/10100"}`)
	})

	env, err := r.Invoke(context.Background(), "jira.create_issue", map[string]any{
		"project_key": "PROJ",
		"summary":     "Add retries",
		"description": "first line\n\nthird line",
		"labels":      []any{"backend"},
	}, siteCreds)
	require.NoError(t, err)

	fields := got["fields"].(map[string]any)
	assert.Equal(t, map[string]any{"key": "PROJ"}, fields["project"])
	assert.Equal(t, map[string]any{"name": "Task"}, fields["issuetype"])
	assert.Equal(t, []any{"backend"}, fields["labels"])

	doc := fields["description"].(map[string]any)
	assert.Equal(t, "doc", doc["type"])
	assert.Len(t, doc["content"], 3)

	assert.Equal(t, map[string]any{
		"id":  "10100",
		"key": "PROJ-100",
		"url": "https://acme.atlassian.net/browse/PROJ-100",
	}, decode(t, env))
}

func TestFindProject(t *testing.T) {
	_, r := newConnector(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/ex/jira/cloud-1/rest/api/3/project/search", req.URL.Path)
		_, _ = io.WriteString(w, `{"values":[{"id":"1","key":"PROJ","name":"Platform","projectTypeKey":"software"}]}`)
	})

	env, err := r.Invoke(context.Background(), "jira.find_project", map[string]any{"name": "platform"}, siteCreds)
	require.NoError(t, err)
	assert.Equal(t, "PROJ", decode(t, env)["key"])

	_, err = r.Invoke(context.Background(), "jira.find_project", map[string]any{"name": "Mobile"}, siteCreds)
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "project", nf.Resource)
	assert.Equal(t, "Mobile", nf.ID)
}
