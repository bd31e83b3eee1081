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

// Package config loads connectkit's YAML configuration.
//
// Values may reference environment variables with ${VAR}. Connector client
// secrets must do so: a literal secret in the file is rejected.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/tracing"
	"github.com/tombee/connectkit/pkg/errors"
)

// Config is the complete connectkit configuration.
type Config struct {
	Log        LogConfig                  `yaml:"log"`
	Tracing    tracing.Config             `yaml:"tracing"`
	Server     ServerConfig               `yaml:"server"`
	Connectors map[string]ConnectorConfig `yaml:"connectors"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`

	AddSource bool `yaml:"add_source"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Name is reported to MCP clients during initialization.
	Name string `yaml:"name"`

	// Tools is a glob allowlist of operation names, e.g. ["slack.*"].
	// Empty exposes every registered operation.
	Tools []string `yaml:"tools"`

	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9090".
	MetricsAddr string `yaml:"metrics_addr"`
}

// ConnectorConfig configures one connector and its OAuth client.
type ConnectorConfig struct {
	Enabled bool `yaml:"enabled"`

	// BaseURL overrides the vendor API root, mainly for testing.
	BaseURL string `yaml:"base_url"`

	ClientID string `yaml:"client_id"`

	// ClientSecret must be a ${VAR} reference.
	ClientSecret string `yaml:"client_secret"`

	RedirectURI string `yaml:"redirect_uri"`

	// Scopes replace the connector's default scopes when set.
	Scopes []string `yaml:"scopes"`

	// ExtraAuthParams are merged over the connector's defaults.
	ExtraAuthParams map[string]string `yaml:"extra_auth_params"`

	// AuthURL and TokenURL override the connector's endpoints.
	AuthURL  string `yaml:"auth_url"`
	TokenURL string `yaml:"token_url"`

	// Grant selects how tokens are obtained. Empty means authorization_code.
	Grant string `yaml:"grant"`
}

// OAuth2 grants a connector can be configured with.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
)

// ClientCredentials reports whether the connector authenticates as itself
// with the client_credentials grant instead of acting for a user.
func (c ConnectorConfig) ClientCredentials() bool {
	return c.Grant == GrantClientCredentials
}

// ApplyProfile returns base with this connector's overrides applied.
func (c ConnectorConfig) ApplyProfile(base oauth.ProviderProfile) oauth.ProviderProfile {
	p := base
	if c.AuthURL != "" {
		p.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		p.TokenURL = c.TokenURL
	}
	if len(c.Scopes) > 0 {
		p.Scopes = append([]string(nil), c.Scopes...)
	}
	if len(c.ExtraAuthParams) > 0 {
		merged := make(map[string]string, len(base.ExtraAuthParams)+len(c.ExtraAuthParams))
		for k, v := range base.ExtraAuthParams {
			merged[k] = v
		}
		for k, v := range c.ExtraAuthParams {
			merged[k] = v
		}
		p.ExtraAuthParams = merged
	}
	return p
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: tracing.DefaultConfig(),
		Server: ServerConfig{
			Name: "connectkit",
		},
		Connectors: map[string]ConnectorConfig{},
	}
}

// Load reads configuration from path, or from the default location when
// path is empty. A missing default file is not an error; a missing explicit
// file is. Environment overrides are applied last, then the result is
// validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, &errors.ConfigurationError{Key: "config_file", Reason: "cannot determine config location", Cause: err}
		}
		path = p
	}

	if err := cfg.loadFromFile(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			err = nil
		} else {
			var cfgErr *errors.ConfigurationError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			return nil, &errors.ConfigurationError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML configuration over the defaults, without environment
// overrides or validation.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.decode(data)
}

// decode unmarshals data, checks secret references on the raw values and
// then expands environment references.
func (c *Config) decode(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if c.Connectors == nil {
		c.Connectors = map[string]ConnectorConfig{}
	}

	for _, name := range c.ConnectorNames() {
		secret := c.Connectors[name].ClientSecret
		if secret != "" && !secretRef.MatchString(secret) {
			return &errors.ConfigurationError{
				Key:    "connectors." + name + ".client_secret",
				Reason: "client_secret must use ${VAR_NAME} syntax",
			}
		}
	}

	c.expandEnv()
	return nil
}

var secretRef = regexp.MustCompile(`^\$\{[A-Za-z_][A-Za-z0-9_]*\}$`)

func (c *Config) expandEnv() {
	c.Log.Level = os.ExpandEnv(c.Log.Level)
	c.Log.Format = os.ExpandEnv(c.Log.Format)
	c.Tracing.Endpoint = os.ExpandEnv(c.Tracing.Endpoint)
	c.Tracing.CACertPath = os.ExpandEnv(c.Tracing.CACertPath)
	for k, v := range c.Tracing.Headers {
		c.Tracing.Headers[k] = os.ExpandEnv(v)
	}
	c.Server.Name = os.ExpandEnv(c.Server.Name)
	c.Server.MetricsAddr = os.ExpandEnv(c.Server.MetricsAddr)

	for name, cc := range c.Connectors {
		cc.BaseURL = os.ExpandEnv(cc.BaseURL)
		cc.ClientID = os.ExpandEnv(cc.ClientID)
		cc.ClientSecret = os.ExpandEnv(cc.ClientSecret)
		cc.RedirectURI = os.ExpandEnv(cc.RedirectURI)
		cc.AuthURL = os.ExpandEnv(cc.AuthURL)
		cc.TokenURL = os.ExpandEnv(cc.TokenURL)
		for k, v := range cc.ExtraAuthParams {
			cc.ExtraAuthParams[k] = os.ExpandEnv(v)
		}
		c.Connectors[name] = cc
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("CONNECTKIT_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("CONNECTKIT_DEBUG"); val == "1" || val == "true" {
		c.Log.Level = "debug"
		c.Log.AddSource = true
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CONNECTKIT_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
		c.Tracing.Enabled = c.Tracing.Exporter != tracing.ExporterNone
	}
	if val := os.Getenv("CONNECTKIT_METRICS_ADDR"); val != "" {
		c.Server.MetricsAddr = val
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !log.ValidLevel(c.Log.Level) {
		return &errors.ConfigurationError{
			Key:    "log.level",
			Reason: fmt.Sprintf("invalid log level %q (must be trace, debug, info, warn or error)", c.Log.Level),
		}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return &errors.ConfigurationError{
			Key:    "log.format",
			Reason: fmt.Sprintf("invalid log format %q (must be json or text)", c.Log.Format),
		}
	}

	if err := c.Tracing.Validate(); err != nil {
		return err
	}

	for _, name := range c.ConnectorNames() {
		cc := c.Connectors[name]
		key := "connectors." + name
		switch cc.Grant {
		case "", GrantAuthorizationCode, GrantClientCredentials:
		default:
			return &errors.ConfigurationError{
				Key:    key + ".grant",
				Reason: fmt.Sprintf("invalid grant %q (must be authorization_code or client_credentials)", cc.Grant),
			}
		}
		if !cc.Enabled {
			continue
		}
		if cc.ClientID == "" {
			return &errors.ConfigurationError{Key: key + ".client_id", Reason: "client_id is required for an enabled connector"}
		}
		if cc.RedirectURI == "" && !cc.ClientCredentials() {
			return &errors.ConfigurationError{Key: key + ".redirect_uri", Reason: "redirect_uri is required for an enabled connector"}
		}
	}
	return nil
}

// ConnectorNames returns the configured connector names, sorted.
func (c *Config) ConnectorNames() []string {
	names := make([]string, 0, len(c.Connectors))
	for name := range c.Connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledConnectors returns the names of enabled connectors, sorted.
func (c *Config) EnabledConnectors() []string {
	var names []string
	for _, name := range c.ConnectorNames() {
		if c.Connectors[name].Enabled {
			names = append(names, name)
		}
	}
	return names
}

// LoggerConfig converts the log section into a logger config writing to stderr.
func (c *Config) LoggerConfig() *log.Config {
	lc := log.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = log.Format(c.Log.Format)
	lc.AddSource = c.Log.AddSource
	return lc
}
