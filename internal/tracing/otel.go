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

// Package tracing configures OpenTelemetry for connectkit.
//
// Setup installs a global tracer provider, so the spans started by the
// operation registry, the HTTP dispatch helper and the OAuth manager are
// exported without those packages knowing about exporters. It also installs
// a meter provider backed by the Prometheus exporter; MetricsHandler serves
// those metrics together with the promauto counters of the core packages.
package tracing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tombee/connectkit/internal/tracing/export"
)

// Option adjusts Setup.
type Option func(*setupOptions)

type setupOptions struct {
	registerer    promclient.Registerer
	consoleWriter io.Writer
	spanOpts      []sdktrace.TracerProviderOption
}

// WithRegisterer registers the metric exporter with r instead of the
// default Prometheus registry.
func WithRegisterer(r promclient.Registerer) Option {
	return func(o *setupOptions) { o.registerer = r }
}

// WithConsoleWriter redirects the console exporter (default: stderr).
func WithConsoleWriter(w io.Writer) Option {
	return func(o *setupOptions) { o.consoleWriter = w }
}

// WithTracerProviderOptions appends SDK options, e.g. a span processor in tests.
func WithTracerProviderOptions(opts ...sdktrace.TracerProviderOption) Option {
	return func(o *setupOptions) { o.spanOpts = append(o.spanOpts, opts...) }
}

// Provider owns the SDK providers installed by Setup.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *metric.MeterProvider
}

// Setup builds the tracer and meter providers described by cfg and installs
// them globally. With tracing disabled no spans are exported, but metrics
// are still collected.
func Setup(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &setupOptions{consoleWriter: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	// No schema URL, so the merge with resource.Default cannot conflict.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	promOpts := []prometheus.Option{}
	if o.registerer != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(o.registerer))
	}
	promExporter, err := prometheus.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)
	otel.SetMeterProvider(mp)

	p := &Provider{mp: mp}
	if !cfg.Enabled && len(o.spanOpts) == 0 {
		return p, nil
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	if cfg.Enabled {
		exporter, err := newExporter(ctx, cfg, o)
		if err != nil {
			_ = mp.Shutdown(ctx)
			return nil, err
		}
		if exporter != nil {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
		}
	}
	tpOpts = append(tpOpts, o.spanOpts...)

	p.tp = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return p, nil
}

func newExporter(ctx context.Context, cfg Config, o *setupOptions) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterConsole:
		return export.NewConsoleExporter(export.ConsoleConfig{Writer: o.consoleWriter, PrettyPrint: true})
	case ExporterOTLP, ExporterOTLPHTTP:
		tlsCfg, err := export.BuildTLSConfig(export.TLSConfigInput{
			Enabled:    !cfg.Insecure,
			CACertPath: cfg.CACertPath,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Exporter == ExporterOTLP {
			return export.NewOTLPExporter(ctx, export.OTLPConfig{
				Endpoint:  cfg.Endpoint,
				Insecure:  cfg.Insecure,
				TLSConfig: tlsCfg,
				Headers:   cfg.Headers,
			})
		}
		return export.NewOTLPHTTPExporter(ctx, export.OTLPHTTPConfig{
			Endpoint:  cfg.Endpoint,
			Insecure:  cfg.Insecure,
			TLSConfig: tlsCfg,
			Headers:   cfg.Headers,
		})
	default:
		return nil, nil
	}
}

// Shutdown flushes pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			return err
		}
	}
	return p.mp.Shutdown(ctx)
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// TracingEnabled reports whether a tracer provider was installed.
func (p *Provider) TracingEnabled() bool {
	return p.tp != nil
}

// MetricsHandler serves the default Prometheus registry, which holds both
// the OpenTelemetry exporter's metrics and the promauto collectors.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
