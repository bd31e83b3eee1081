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

package shared

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tombee/connectkit/internal/config"
	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/internal/secrets"
	"github.com/tombee/connectkit/pkg/errors"
	"github.com/tombee/connectkit/pkg/httpclient"
)

// Runtime carries what commands share once flags are parsed: the loaded
// configuration, a logger and the credential store.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *secrets.Store

	// HTTPClient is used for vendor and token endpoint calls.
	HTTPClient *http.Client
}

// LoadRuntime loads configuration from --config or the default location.
// logLevel, when set, overrides the configured level.
func LoadRuntime(logLevel string) (*Runtime, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}

	lc := cfg.LoggerConfig()
	if globals.Verbose {
		lc.Level = "debug"
	}
	if logLevel != "" {
		if !log.ValidLevel(logLevel) {
			return nil, NewUsageError(fmt.Sprintf("invalid log level %q", logLevel))
		}
		lc.Level = logLevel
	}

	logger := log.New(lc)
	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Store:      secrets.NewStore(secrets.NewKeychain(secrets.DefaultService)),
		HTTPClient: httpclient.New(httpclient.Config{UserAgent: UserAgent(), Logger: logger}),
	}, nil
}

// UserAgent is sent on every vendor call.
func UserAgent() string {
	return "connectkit/" + version
}

// Connector builds the named connector with its configured overrides.
// Connectors without a config entry get vendor defaults.
func (r *Runtime) Connector(name string) (api.Connector, config.ConnectorConfig, error) {
	cc := r.Config.Connectors[name]
	conn, err := integration.New(name, api.Config{
		BaseURL:    cc.BaseURL,
		HTTPClient: r.HTTPClient,
		Logger:     r.Logger,
		UserAgent:  UserAgent(),
	})
	if err != nil {
		return nil, cc, err
	}
	return conn, cc, nil
}

// OAuthClient returns the connector with an OAuth manager for its profile.
// The connector must have a client_id configured.
func (r *Runtime) OAuthClient(name string) (api.Connector, config.ConnectorConfig, *oauth.Manager, error) {
	conn, cc, err := r.Connector(name)
	if err != nil {
		return nil, cc, nil, err
	}
	if cc.ClientID == "" {
		return nil, cc, nil, &errors.ConfigurationError{
			Key:    fmt.Sprintf("connectors.%s.client_id", name),
			Reason: "client_id is required to authorize " + name,
		}
	}

	mgr, err := oauth.NewManager(cc.ApplyProfile(conn.Profile()),
		oauth.WithHTTPClient(r.HTTPClient),
		oauth.WithLogger(r.Logger),
	)
	if err != nil {
		return nil, cc, nil, err
	}
	return conn, cc, mgr, nil
}

// Registry registers the named connectors' operations into a new registry.
func (r *Runtime) Registry(names []string) (*operation.Registry, error) {
	reg := operation.NewRegistry(operation.WithLogger(r.Logger))
	for _, name := range names {
		conn, _, err := r.Connector(name)
		if err != nil {
			return nil, err
		}
		if err := conn.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register %s operations: %w", name, err)
		}
	}
	return reg, nil
}
