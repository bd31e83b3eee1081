// Package jira exposes Jira Cloud REST calls as connectkit operations.
//
// Jira Cloud is reached through the Atlassian API gateway, which routes by
// cloud ID. The ID is not part of the token response: Enrich looks it up
// once after the code exchange and stores it as the "cloud_id" provider
// field, which every operation requires.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/internal/operation/transport"
	"github.com/tombee/connectkit/pkg/errors"
)

// DefaultBaseURL is the Atlassian API gateway.
const DefaultBaseURL = "https://api.atlassian.com"

// Provider field keys written by Enrich.
const (
	FieldCloudID = "cloud_id"
	FieldSiteURL = "site_url"
)

// Connector implements api.Connector for Jira Cloud.
type Connector struct {
	http *transport.Client
}

// New creates the Jira connector.
func New(cfg api.Config) api.Connector {
	return &Connector{http: cfg.Transport("jira", DefaultBaseURL)}
}

func (c *Connector) Name() string { return "jira" }

// Profile returns the Atlassian 3LO endpoints.
func (c *Connector) Profile() oauth.ProviderProfile {
	return oauth.ProviderProfile{
		Name:     "jira",
		AuthURL:  "https://auth.atlassian.com/authorize",
		TokenURL: "https://auth.atlassian.com/oauth/token",
		Scopes:   []string{"read:jira-work", "write:jira-work", "read:jira-user", "offline_access"},
		ExtraAuthParams: map[string]string{
			"audience": "api.atlassian.com",
			"prompt":   "consent",
		},
		TokenRequestFormat: oauth.TokenRequestJSON,
	}
}

// Register adds the Jira operations.
func (c *Connector) Register(r *operation.Registry) error {
	if err := r.Register("jira.get_issue", getIssueInput, c.getIssue,
		operation.WithDescription("Get an issue by key"),
		operation.WithCategory("issues"),
		operation.WithTags("read"),
		operation.WithResultFilter(issueSummaryFilter),
	); err != nil {
		return err
	}
	if err := r.Register("jira.search_issues", searchIssuesInput, c.searchIssues,
		operation.WithDescription("Search issues with JQL"),
		operation.WithCategory("issues"),
		operation.WithTags("read", "paginated"),
	); err != nil {
		return err
	}
	if err := r.Register("jira.create_issue", createIssueInput, c.createIssue,
		operation.WithDescription("Create an issue in a project"),
		operation.WithCategory("issues"),
		operation.WithTags("write"),
	); err != nil {
		return err
	}
	return r.Register("jira.find_project", findProjectInput, c.findProject,
		operation.WithDescription("Look up a project by key or name"),
		operation.WithCategory("projects"),
		operation.WithTags("read"),
	)
}

type resource struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// ResolveCloudID returns a copy of creds with the cloud_id and site_url
// provider fields set from the first site the token can access.
func (c *Connector) ResolveCloudID(ctx context.Context, creds *oauth.Credentials) (*oauth.Credentials, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	var sites []resource
	if err := c.do(ctx, creds, http.MethodGet, "oauth/token/accessible-resources", nil, &sites); err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, &errors.AuthError{Reason: "token has no accessible Jira sites"}
	}

	return creds.
		WithProviderField(FieldCloudID, sites[0].ID).
		WithProviderField(FieldSiteURL, sites[0].URL), nil
}

// Enrich implements api.Enricher.
func (c *Connector) Enrich(ctx context.Context, creds *oauth.Credentials) (*oauth.Credentials, error) {
	return c.ResolveCloudID(ctx, creds)
}

// apiPath builds a REST v3 path for the credential's site.
func apiPath(creds *oauth.Credentials, format string, args ...any) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	cloudID := creds.ProviderString(FieldCloudID)
	if cloudID == "" {
		return "", &errors.AuthError{Reason: "jira credentials have no cloud_id; re-run connectkit auth exchange jira"}
	}
	return fmt.Sprintf("ex/jira/%s/rest/api/3/", url.PathEscape(cloudID)) + fmt.Sprintf(format, args...), nil
}

func (c *Connector) do(ctx context.Context, creds *oauth.Credentials, method, path string, body, out any) error {
	resp, _, err := c.http.Call(ctx, &transport.Request{Method: method, URL: path, Body: body, Auth: creds})
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}
