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
	"fmt"

	"github.com/tombee/connectkit/pkg/errors"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone     = "none"
	ExporterConsole  = "console"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// Exporter is one of none, console, otlp or otlp-http.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for OTLP exporters (development only).
	Insecure bool `yaml:"insecure"`

	// CACertPath is a PEM bundle used to verify the OTLP receiver.
	CACertPath string `yaml:"ca_cert"`

	// Headers are sent with every export request, typically for auth.
	Headers map[string]string `yaml:"headers"`

	// SampleRate is the fraction of root traces recorded (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate"`
}

// DefaultConfig returns configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "connectkit",
		ServiceVersion: "dev",
		Exporter:       ExporterNone,
		SampleRate:     1.0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterConsole:
	case ExporterOTLP, ExporterOTLPHTTP:
		if c.Enabled && c.Endpoint == "" {
			return &errors.ConfigurationError{
				Key:    "tracing.endpoint",
				Reason: fmt.Sprintf("endpoint is required for the %s exporter", c.Exporter),
			}
		}
	default:
		return &errors.ConfigurationError{
			Key:    "tracing.exporter",
			Reason: fmt.Sprintf("unknown exporter %q (must be none, console, otlp or otlp-http)", c.Exporter),
		}
	}

	if c.SampleRate < 0 || c.SampleRate > 1 {
		return &errors.ConfigurationError{
			Key:    "tracing.sample_rate",
			Reason: fmt.Sprintf("must be between 0 and 1, got %v", c.SampleRate),
		}
	}
	return nil
}
