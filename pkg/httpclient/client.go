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

package httpclient

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/tombee/connectkit/internal/log"
)

// Config configures New.
type Config struct {
	// UserAgent is set on requests that do not carry one.
	UserAgent string

	// Logger receives request logs (default: discard).
	Logger *slog.Logger

	// Base replaces the pooled transport, mainly for tests.
	Base http.RoundTripper
}

// New creates a client with TLS 1.2 minimum, connection pooling, and the
// logging transport.
func New(cfg Config) *http.Client {
	base := cfg.Base
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	return &http.Client{
		Transport: newLoggingTransport(base, cfg.UserAgent, log.WithComponent(logger, "httpclient")),
	}
}
