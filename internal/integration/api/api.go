// Package api defines the contract between connectors and the rest of
// connectkit.
package api

import (
	"context"
	"log/slog"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/internal/operation"
	"github.com/tombee/connectkit/internal/operation/transport"
)

// Config configures a connector instance.
type Config struct {
	// BaseURL overrides the vendor API root.
	BaseURL string

	// HTTPClient is used for vendor calls (default: http.DefaultClient).
	HTTPClient transport.HTTPDoer

	Logger *slog.Logger

	// UserAgent is sent on vendor calls.
	UserAgent string
}

// Transport returns a dispatch client rooted at BaseURL, or at defaultBase
// when BaseURL is empty.
func (c Config) Transport(connector, defaultBase string) *transport.Client {
	base := c.BaseURL
	if base == "" {
		base = defaultBase
	}
	opts := []transport.Option{
		transport.WithBaseURL(base),
		transport.WithHTTPClient(c.HTTPClient),
		transport.WithLogger(log.WithConnector(c.logger(), connector)),
	}
	if c.UserAgent != "" {
		opts = append(opts, transport.WithUserAgent(c.UserAgent))
	}
	return transport.New(opts...)
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return log.Discard()
	}
	return c.Logger
}

// Connector contributes a vendor's operations and OAuth profile.
type Connector interface {
	// Name is the connector name and the prefix of its operation names.
	Name() string

	// Profile describes the vendor's OAuth2 endpoints.
	Profile() oauth.ProviderProfile

	// Register adds the connector's operations to r.
	Register(r *operation.Registry) error
}

// Enricher is implemented by connectors that need more than the token
// response, for example a tenant identifier looked up after the exchange.
type Enricher interface {
	Enrich(ctx context.Context, creds *oauth.Credentials) (*oauth.Credentials, error)
}
