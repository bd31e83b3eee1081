// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/connectkit/internal/integration"
)

const (
	catalogURI         = "connectkit://operations"
	connectorURIPrefix = "connectkit://connectors/"
)

type catalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
	Filter      string         `json:"resultFilter,omitempty"`
}

// connectorStatus describes stored credentials without exposing them.
type connectorStatus struct {
	Connector      string     `json:"connector"`
	Authenticated  bool       `json:"authenticated"`
	Error          string     `json:"error,omitempty"`
	TokenType      string     `json:"token_type,omitempty"`
	Scope          string     `json:"scope,omitempty"`
	ObtainedAt     *time.Time `json:"obtained_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Expired        bool       `json:"expired"`
	Refreshable    bool       `json:"refreshable"`
	ProviderFields []string   `json:"provider_fields,omitempty"`
	Operations     []string   `json:"operations"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(catalogURI, "Operation catalog",
			mcp.WithResourceDescription("Operations exposed as tools, with their input schemas"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return jsonResource(catalogURI, s.catalog())
		},
	)

	for _, name := range s.connectors {
		uri := connectorURIPrefix + name
		s.mcpServer.AddResource(
			mcp.NewResource(uri, name+" connector status",
				mcp.WithResourceDescription("Authentication status of the "+name+" connector"),
				mcp.WithMIMEType("application/json"),
			),
			func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return jsonResource(uri, s.status(ctx, name))
			},
		)
	}
}

func (s *Server) catalog() []catalogEntry {
	entries := make([]catalogEntry, 0, len(s.tools))
	for _, name := range s.tools {
		d, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		entries = append(entries, catalogEntry{
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Tags:        d.Tags,
			InputSchema: d.Input.JSONSchema(),
			Filter:      d.ResultFilter,
		})
	}
	return entries
}

func (s *Server) status(ctx context.Context, connector string) connectorStatus {
	st := connectorStatus{Connector: connector, Operations: []string{}}
	for _, name := range s.tools {
		if integration.ConnectorFor(name) == connector {
			st.Operations = append(st.Operations, name)
		}
	}

	if s.creds == nil {
		st.Error = "no credential source configured"
		return st
	}
	creds, err := s.creds.Credentials(ctx, connector)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	st.Authenticated = true
	st.TokenType = creds.TokenType
	st.Scope = creds.Scope
	st.Refreshable = creds.RefreshToken != ""
	if !creds.ObtainedAt.IsZero() {
		obtained := creds.ObtainedAt
		st.ObtainedAt = &obtained
	}
	if exp := creds.ExpiresAt(); !exp.IsZero() {
		st.ExpiresAt = &exp
		st.Expired = creds.Expired(time.Now(), 0)
	}
	for k := range creds.ProviderFields {
		st.ProviderFields = append(st.ProviderFields, k)
	}
	sort.Strings(st.ProviderFields)
	return st
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
