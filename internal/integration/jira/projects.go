package jira

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/pkg/errors"
)

var findProjectInput = operation.Object(
	operation.Required("name", operation.String().Describe("Project key or name")),
)

type project struct {
	ID             string `json:"id"`
	Key            string `json:"key"`
	Name           string `json:"name"`
	ProjectTypeKey string `json:"projectTypeKey"`
}

func (c *Connector) findProject(ctx context.Context, in operation.Input, creds *oauth.Credentials) (*operation.Envelope, error) {
	name := in.String("name")
	path, err := apiPath(creds, "project/search")
	if err != nil {
		return nil, err
	}
	path += "?" + url.Values{"query": {name}, "maxResults": {"50"}}.Encode()

	var resp struct {
		Values []project `json:"values"`
	}
	if err := c.do(ctx, creds, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Values {
		if strings.EqualFold(p.Key, name) || strings.EqualFold(p.Name, name) {
			return operation.JSON(map[string]any{
				"id":   p.ID,
				"key":  p.Key,
				"name": p.Name,
				"type": p.ProjectTypeKey,
			})
		}
	}
	return nil, &errors.NotFoundError{Resource: "project", ID: name}
}
