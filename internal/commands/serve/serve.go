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

// Package serve implements "connectkit serve", which exposes connector
// operations to MCP clients over stdio.
package serve

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/mcp/server"
	"github.com/tombee/connectkit/internal/tracing"
	pkgerrors "github.com/tombee/connectkit/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	connectors  []string
	metricsAddr string
	logLevel    string
}

// NewCommand creates the serve command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve connector operations as MCP tools over stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout.

Every operation of the selected connectors becomes an MCP tool, filtered by
the server.tools allowlist in the config file. Credentials are read from the
OS keychain at call time, so run 'connectkit auth url' and
'connectkit auth exchange' for each connector first.

Connectors are chosen by --connector, then by the enabled connectors in the
config file, and otherwise every built-in connector is served.

Configuration example for an MCP client:
  {
    "mcpServers": {
      "connectkit": {
        "command": "connectkit",
        "args": ["serve", "--connector", "slack"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.connectors, "connector", nil, "Connector to serve (repeatable)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Logging verbosity (trace, debug, info, warn, error)")

	return cmd
}

func run(ctx context.Context, opts options) error {
	rt, err := shared.LoadRuntime(opts.logLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	version, _, _ := shared.GetVersion()
	tc := rt.Config.Tracing
	tc.ServiceVersion = version
	provider, err := tracing.Setup(ctx, tc)
	if err != nil {
		return shared.Wrap("failed to set up telemetry", err)
	}
	defer func() {
		if err := shutdown("telemetry shutdown", provider.Shutdown); err != nil {
			rt.Logger.Warn("telemetry shutdown failed", log.Error(err))
		}
	}()

	srv, err := newServer(rt, opts.connectors)
	if err != nil {
		return err
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = rt.Config.Server.MetricsAddr
	}
	if addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return shared.Wrap("failed to listen for metrics", err)
		}
		ms := serveMetrics(ln, provider.MetricsHandler(), rt.Logger)
		defer func() {
			if err := shutdown("metrics server shutdown", ms.Shutdown); err != nil {
				rt.Logger.Warn("metrics server shutdown failed", log.Error(err))
			}
		}()
	}

	rt.Logger.Info("mcp server starting",
		slog.Int("tools", len(srv.Tools())),
		slog.Bool("tracing", provider.TracingEnabled()),
	)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return shared.Wrap("mcp server error", err)
	}
	rt.Logger.Info("mcp server stopped")
	return nil
}

// selectConnectors picks the connectors to serve.
func selectConnectors(rt *shared.Runtime, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	if enabled := rt.Config.EnabledConnectors(); len(enabled) > 0 {
		return enabled
	}
	return integration.Names()
}

func newServer(rt *shared.Runtime, requested []string) (*server.Server, error) {
	connectors := selectConnectors(rt, requested)
	registry, err := rt.Registry(connectors)
	if err != nil {
		return nil, shared.Wrap("failed to load connectors", err)
	}

	version, _, _ := shared.GetVersion()
	srv, err := server.NewServer(server.ServerConfig{
		Name:        rt.Config.Server.Name,
		Version:     version,
		Registry:    registry,
		Credentials: server.CredentialSourceFunc(rt.Store.Load),
		Connectors:  connectors,
		Tools:       rt.Config.Server.Tools,
		Logger:      rt.Logger,
	})
	if err != nil {
		return nil, shared.NewConfigError("failed to create MCP server", err)
	}
	return srv, nil
}

// shutdown runs fn with a bounded context. Running out of time is reported
// as a TimeoutError.
func shutdown(operation string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return &pkgerrors.TimeoutError{Operation: operation, Duration: shutdownTimeout, Cause: err}
	}
	return err
}

// serveMetrics serves handler at /metrics on ln until the returned server
// is shut down.
func serveMetrics(ln net.Listener, handler http.Handler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	ms := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := ms.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return ms
}
