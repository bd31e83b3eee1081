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

// Package server exposes registered operations to MCP clients.
//
// Every selected operation becomes an MCP tool whose input schema is
// rendered from the operation's schema. Tool calls go through
// Registry.Invoke, so arguments are validated before any vendor call. The
// operation catalog and per-connector auth status are published as
// resources.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
)

const meterName = "github.com/tombee/connectkit/internal/mcp/server"

// CredentialSource supplies the credential bundle for a connector.
type CredentialSource interface {
	Credentials(ctx context.Context, connector string) (*oauth.Credentials, error)
}

// CredentialSourceFunc adapts a function to CredentialSource.
type CredentialSourceFunc func(ctx context.Context, connector string) (*oauth.Credentials, error)

func (f CredentialSourceFunc) Credentials(ctx context.Context, connector string) (*oauth.Credentials, error) {
	return f(ctx, connector)
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is the server name (default: "connectkit").
	Name string

	// Version is the connectkit version.
	Version string

	// Registry holds the operations to expose. Required.
	Registry *operation.Registry

	// Credentials supplies bundles for tool calls. Without it, handlers
	// receive nil credentials.
	Credentials CredentialSource

	// Connectors lists the connectors whose status is published.
	Connectors []string

	// Tools is a glob allowlist over operation names. Empty exposes all.
	Tools []string

	Logger *slog.Logger
}

// Server wraps the MCP server.
type Server struct {
	mcpServer  *server.MCPServer
	name       string
	version    string
	registry   *operation.Registry
	creds      CredentialSource
	connectors []string
	tools      []string
	logger     *slog.Logger
	calls      *log.CallMiddleware

	callCounter  metric.Int64Counter
	callDuration metric.Float64Histogram
}

// NewServer creates a server and registers its tools and resources.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if config.Name == "" {
		config.Name = "connectkit"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = log.WithComponent(logger, "mcp")

	s := &Server{
		mcpServer: server.NewMCPServer(config.Name, config.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
		name:       config.Name,
		version:    config.Version,
		registry:   config.Registry,
		creds:      config.Credentials,
		connectors: append([]string(nil), config.Connectors...),
		logger:     logger,
		calls:      log.NewCallMiddleware(logger),
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	tools, err := config.Registry.Select(config.Tools...)
	if err != nil {
		return nil, fmt.Errorf("invalid tool allowlist: %w", err)
	}
	s.tools = tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	s.registerResources()

	return s, nil
}

func (s *Server) initMetrics() error {
	meter := otel.Meter(meterName)

	var err error
	s.callCounter, err = meter.Int64Counter("connectkit.mcp.tool_calls",
		metric.WithDescription("MCP tool calls by tool and outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tool call counter: %w", err)
	}
	s.callDuration, err = meter.Float64Histogram("connectkit.mcp.tool_call.duration",
		metric.WithDescription("MCP tool call duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tool call histogram: %w", err)
	}
	return nil
}

// Tools returns the names of the exposed operations.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run serves MCP over stdin and stdout until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server",
		slog.String("version", s.version),
		slog.Int("tools", len(s.tools)),
	)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}
