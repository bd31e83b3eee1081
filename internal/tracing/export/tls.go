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

package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfigInput selects the TLS settings for an OTLP exporter.
type TLSConfigInput struct {
	Enabled bool

	// CACertPath is a PEM bundle replacing the system pool.
	CACertPath string
}

// BuildTLSConfig returns a TLS 1.2+ client config, or nil when TLS is
// disabled. Without a CA path the system pool is used.
func BuildTLSConfig(in TLSConfigInput) (*tls.Config, error) {
	if !in.Enabled {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if in.CACertPath == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("failed to load system cert pool: %w", err)
		}
		cfg.RootCAs = pool
		return cfg, nil
	}

	pem, err := os.ReadFile(in.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", in.CACertPath)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// ValidateTLSConfig rejects configs that allow protocol versions below 1.2
// or skip certificate verification.
func ValidateTLSConfig(cfg *tls.Config) error {
	if cfg == nil {
		return fmt.Errorf("TLS config is nil")
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		return fmt.Errorf("minimum TLS version must be 1.2 or higher, got %#x", cfg.MinVersion)
	}
	if cfg.InsecureSkipVerify {
		return fmt.Errorf("certificate verification must not be disabled; use insecure: true for plaintext development collectors")
	}
	return nil
}
