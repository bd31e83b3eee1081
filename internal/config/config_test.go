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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/tracing"
	"github.com/tombee/connectkit/pkg/errors"
)

const sampleConfig = `
log:
  level: debug
  format: text
tracing:
  enabled: true
  exporter: otlp
  endpoint: ${TEST_OTLP_ENDPOINT}
  headers:
    authorization: Bearer ${TEST_OTLP_TOKEN}
server:
  name: team-tools
  tools: ["slack.*", "jira.get_issue"]
connectors:
  slack:
    enabled: true
    client_id: "1234.5678"
    client_secret: ${TEST_SLACK_SECRET}
    redirect_uri: http://localhost:8765/callback
    scopes: [chat:write]
  jira:
    enabled: false
    client_id: abc
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format 'json', got %q", cfg.Log.Format)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.Server.Name != "connectkit" {
		t.Errorf("expected server name 'connectkit', got %q", cfg.Server.Name)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TEST_OTLP_TOKEN", "tok")
	t.Setenv("TEST_SLACK_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("CONNECTKIT_LOG_LEVEL", "")
	t.Setenv("CONNECTKIT_DEBUG", "")
	t.Setenv("CONNECTKIT_TRACING_EXPORTER", "")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "Bearer tok", cfg.Tracing.Headers["authorization"])
	assert.Equal(t, []string{"slack.*", "jira.get_issue"}, cfg.Server.Tools)

	slack := cfg.Connectors["slack"]
	assert.Equal(t, "s3cret", slack.ClientSecret)
	assert.Equal(t, "1234.5678", slack.ClientID)
	assert.Equal(t, []string{"jira", "slack"}, cfg.ConnectorNames())
	assert.Equal(t, []string{"slack"}, cfg.EnabledConnectors())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TEST_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TEST_SLACK_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CONNECTKIT_LOG_LEVEL", "")
	t.Setenv("CONNECTKIT_DEBUG", "")
	t.Setenv("CONNECTKIT_TRACING_EXPORTER", "console")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, tracing.ExporterConsole, cfg.Tracing.Exporter)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoad_ConnectkitLogEnvironment(t *testing.T) {
	t.Setenv("TEST_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("TEST_SLACK_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CONNECTKIT_LOG_LEVEL", "TRACE")
	t.Setenv("CONNECTKIT_DEBUG", "")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)

	t.Setenv("CONNECTKIT_DEBUG", "1")
	cfg, err = Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.AddSource)
}

func TestLoad_LiteralSecretRejected(t *testing.T) {
	path := writeConfig(t, `
connectors:
  slack:
    client_id: x
    client_secret: plain-text-secret
`)
	_, err := Load(path)

	var cfgErr *errors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "connectors.slack.client_secret", cfgErr.Key)
	assert.Contains(t, cfgErr.Reason, "${VAR_NAME}")
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		var cfgErr *errors.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "config_file", cfgErr.Key)
	})

	t.Run("default location may be absent", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("LOG_FORMAT", "")
		t.Setenv("CONNECTKIT_LOG_LEVEL", "")
		t.Setenv("CONNECTKIT_DEBUG", "")
		t.Setenv("CONNECTKIT_TRACING_EXPORTER", "")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Log.Level)
	})
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "log: [unterminated"))
	var cfgErr *errors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantKey string
	}{
		{"valid default config", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"tracing endpoint missing", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = tracing.ExporterOTLPHTTP
		}, "tracing.endpoint"},
		{"enabled connector without client id", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{Enabled: true, RedirectURI: "http://localhost/cb"}
		}, "connectors.jira.client_id"},
		{"enabled connector without redirect", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{Enabled: true, ClientID: "id"}
		}, "connectors.jira.redirect_uri"},
		{"disabled connector is not checked", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{}
		}, ""},
		{"unknown grant", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{Grant: "password"}
		}, "connectors.jira.grant"},
		{"client credentials needs no redirect", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{Enabled: true, ClientID: "id", Grant: GrantClientCredentials}
		}, ""},
		{"explicit authorization code grant", func(c *Config) {
			c.Connectors["jira"] = ConnectorConfig{Enabled: true, ClientID: "id", RedirectURI: "http://localhost/cb", Grant: GrantAuthorizationCode}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *errors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestConnectorConfig_ApplyProfile(t *testing.T) {
	base := oauth.ProviderProfile{
		Name:            "jira",
		AuthURL:         "https://auth.atlassian.com/authorize",
		TokenURL:        "https://auth.atlassian.com/oauth/token",
		Scopes:          []string{"read:jira-work"},
		ExtraAuthParams: map[string]string{"audience": "api.atlassian.com", "prompt": "consent"},
	}

	got := ConnectorConfig{
		TokenURL:        "http://127.0.0.1:9999/token",
		Scopes:          []string{"write:jira-work"},
		ExtraAuthParams: map[string]string{"prompt": "none"},
	}.ApplyProfile(base)

	assert.Equal(t, base.AuthURL, got.AuthURL)
	assert.Equal(t, "http://127.0.0.1:9999/token", got.TokenURL)
	assert.Equal(t, []string{"write:jira-work"}, got.Scopes)
	assert.Equal(t, map[string]string{"audience": "api.atlassian.com", "prompt": "none"}, got.ExtraAuthParams)
	assert.Equal(t, "consent", base.ExtraAuthParams["prompt"], "base profile must not change")
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  metrics_addr: 127.0.0.1:9090\n"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.MetricsAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotNil(t, cfg.Connectors)
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "connectkit", "config.yaml"), path)
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "trace"
	cfg.Log.Format = "text"

	lc := cfg.LoggerConfig()
	assert.Equal(t, "trace", lc.Level)
	assert.Equal(t, "text", string(lc.Format))
}
