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
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/pkg/errors"
)

// registerTools adds one MCP tool per selected operation.
func (s *Server) registerTools() error {
	for _, name := range s.tools {
		d, err := s.registry.Get(name)
		if err != nil {
			return err
		}
		s.mcpServer.AddTool(toolFor(d), s.toolHandler(name))
	}
	return nil
}

// toolFor converts a descriptor into an MCP tool definition.
func toolFor(d operation.Descriptor) mcp.Tool {
	schema := d.Input.JSONSchema()
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}

	tool := mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   d.Input.RequiredFields(),
		},
	}

	readOnly := slices.Contains(d.Tags, "read")
	destructive := slices.Contains(d.Tags, "destructive")
	tool.Annotations = mcp.ToolAnnotation{
		ReadOnlyHint:    &readOnly,
		DestructiveHint: &destructive,
	}
	return tool
}

// toolHandler routes a tool call to the registry.
func (s *Server) toolHandler(name string) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		var env *operation.Envelope

		_ = s.calls.Handle(&log.CallRequest{Operation: name, Transport: "mcp"}, func() (string, error) {
			var err error
			env, err = s.call(ctx, name, request.Params.Arguments)
			if err != nil {
				return errors.Classify(err), err
			}
			return "", nil
		})

		outcome := "ok"
		if env.IsError {
			outcome = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("tool", name),
			attribute.String("outcome", outcome),
		)
		s.callCounter.Add(ctx, 1, attrs)
		s.callDuration.Record(ctx, time.Since(start).Seconds(), attrs)

		return toResult(env), nil
	}
}

// call loads credentials and invokes the operation. It always returns an
// envelope; the error is for logging.
func (s *Server) call(ctx context.Context, name string, rawArgs any) (*operation.Envelope, error) {
	var args map[string]any
	if rawArgs != nil {
		m, ok := rawArgs.(map[string]any)
		if !ok {
			err := &errors.ValidationError{Field: "arguments", Reason: fmt.Sprintf("expected object, got %T", rawArgs)}
			return operation.ErrorEnvelope(err), err
		}
		args = m
	}

	creds, err := s.credentials(ctx, name)
	if err != nil {
		return operation.ErrorEnvelope(err), err
	}

	return s.registry.Invoke(ctx, name, args, creds)
}

func (s *Server) credentials(ctx context.Context, operationName string) (*oauth.Credentials, error) {
	if s.creds == nil {
		return nil, nil
	}
	connector := integration.ConnectorFor(operationName)
	creds, err := s.creds.Credentials(ctx, connector)
	if err != nil {
		s.logger.Debug("no credentials for tool call",
			slog.String(log.ConnectorKey, connector),
			log.Error(err),
		)
		return nil, err
	}
	return creds, nil
}

// toResult converts an envelope into an MCP tool result, keeping IsError.
func toResult(env *operation.Envelope) *mcp.CallToolResult {
	result := &mcp.CallToolResult{IsError: env.IsError}
	for _, c := range env.Content {
		switch c.Kind {
		case operation.ContentImage:
			result.Content = append(result.Content, mcp.NewImageContent(c.Data, c.MIMEType))
		case operation.ContentResource:
			result.Content = append(result.Content, mcp.NewEmbeddedResource(mcp.TextResourceContents{
				URI:      c.URI,
				MIMEType: c.MIMEType,
				Text:     c.Text,
			}))
		default:
			result.Content = append(result.Content, mcp.NewTextContent(c.Text))
		}
	}
	if len(result.Content) == 0 {
		result.Content = []mcp.Content{mcp.NewTextContent("")}
	}
	return result
}
