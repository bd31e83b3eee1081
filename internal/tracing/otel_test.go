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

package tracing

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/tombee/connectkit/pkg/errors"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"defaults", func(*Config) {}, ""},
		{"console", func(c *Config) { c.Enabled = true; c.Exporter = ExporterConsole }, ""},
		{"otlp without endpoint", func(c *Config) { c.Enabled = true; c.Exporter = ExporterOTLP }, "tracing.endpoint"},
		{"otlp disabled without endpoint", func(c *Config) { c.Exporter = ExporterOTLPHTTP }, ""},
		{"unknown exporter", func(c *Config) { c.Exporter = "zipkin" }, "tracing.exporter"},
		{"sample rate too high", func(c *Config) { c.SampleRate = 1.5 }, "tracing.sample_rate"},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, "tracing.sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
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

func TestSetup_ConsoleExporter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = ExporterConsole
	cfg.ServiceVersion = "1.2.3"

	p, err := Setup(ctx, cfg,
		WithRegisterer(promclient.NewRegistry()),
		WithConsoleWriter(&buf),
	)
	require.NoError(t, err)
	assert.True(t, p.TracingEnabled())

	_, span := otel.Tracer("tracing-test").Start(ctx, "console.span")
	span.End()

	require.NoError(t, p.ForceFlush(ctx))
	require.NoError(t, p.Shutdown(ctx))

	out := buf.String()
	assert.Contains(t, out, "console.span")
	assert.Contains(t, out, "connectkit")
	assert.Contains(t, out, "1.2.3")
}

func TestSetup_DisabledStillExportsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := promclient.NewRegistry()

	p, err := Setup(ctx, DefaultConfig(), WithRegisterer(reg))
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	assert.False(t, p.TracingEnabled())
	assert.NoError(t, p.ForceFlush(ctx))

	counter, err := otel.Meter("tracing-test").Int64Counter("setup_probe_calls")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.True(t, containsPrefix(names, "setup_probe_calls"), "metric families: %v", names)
}

func TestSetup_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporter = "jaeger"

	_, err := Setup(context.Background(), cfg, WithRegisterer(promclient.NewRegistry()))
	var cfgErr *errors.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestProvider_MetricsHandler(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, DefaultConfig(), WithRegisterer(promclient.NewRegistry()))
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func containsPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
