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

package oauth

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/tombee/connectkit/pkg/errors"
)

// TokenRequestFormat selects how token endpoint requests are encoded.
type TokenRequestFormat string

const (
	// TokenRequestForm posts application/x-www-form-urlencoded bodies (RFC 6749).
	TokenRequestForm TokenRequestFormat = "form"

	// TokenRequestJSON posts application/json bodies, for providers that require it.
	TokenRequestJSON TokenRequestFormat = "json"
)

// ProviderProfile declares how to talk to one OAuth2 provider.
type ProviderProfile struct {
	// Name identifies the provider in logs and metrics.
	Name string `yaml:"name" json:"name"`

	// AuthURL is the authorization endpoint.
	AuthURL string `yaml:"auth_url" json:"auth_url"`

	// TokenURL is the token endpoint used for code exchange and refresh.
	TokenURL string `yaml:"token_url" json:"token_url"`

	// Scopes requested during authorization.
	Scopes []string `yaml:"scopes" json:"scopes,omitempty"`

	// ScopeSeparator joins Scopes in the authorization URL (default: space).
	ScopeSeparator string `yaml:"scope_separator" json:"scope_separator,omitempty"`

	// ExtraAuthParams are static parameters added to the authorization URL
	// (e.g. access_type=offline, audience=...).
	ExtraAuthParams map[string]string `yaml:"extra_auth_params" json:"extra_auth_params,omitempty"`

	// ExtraTokenParams are static parameters added to every token request.
	ExtraTokenParams map[string]string `yaml:"extra_token_params" json:"extra_token_params,omitempty"`

	// PKCE requires a code challenge on authorization and a verifier on exchange.
	PKCE bool `yaml:"pkce" json:"pkce"`

	// AuthStyle selects where client credentials go on token requests.
	// AuthStyleAutoDetect is treated as AuthStyleInParams.
	AuthStyle oauth2.AuthStyle `yaml:"-" json:"-"`

	// TokenRequestFormat selects the token request encoding (default: form).
	TokenRequestFormat TokenRequestFormat `yaml:"token_request_format" json:"token_request_format,omitempty"`
}

// Validate checks the profile is usable.
func (p ProviderProfile) Validate() error {
	key := "profile"
	if p.Name != "" {
		key = "profile." + p.Name
	}

	if err := validateEndpoint(p.AuthURL); err != nil {
		return &errors.ConfigurationError{Key: key + ".auth_url", Reason: err.Error()}
	}
	if err := validateEndpoint(p.TokenURL); err != nil {
		return &errors.ConfigurationError{Key: key + ".token_url", Reason: err.Error()}
	}

	switch p.TokenRequestFormat {
	case "", TokenRequestForm, TokenRequestJSON:
	default:
		return &errors.ConfigurationError{
			Key:    key + ".token_request_format",
			Reason: fmt.Sprintf("must be form or json, got %q", p.TokenRequestFormat),
		}
	}

	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("endpoint must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint must include a host")
	}
	return nil
}

// scopeParam returns the joined scope string.
func (p ProviderProfile) scopeParam() string {
	sep := p.ScopeSeparator
	if sep == "" {
		sep = " "
	}
	return strings.Join(p.Scopes, sep)
}

// customScopeSeparator reports whether scopes cannot go through oauth2.Config,
// which always joins with a space.
func (p ProviderProfile) customScopeSeparator() bool {
	return p.ScopeSeparator != "" && p.ScopeSeparator != " "
}

// oauth2Config builds the x/oauth2 view of the profile.
func (p ProviderProfile) oauth2Config(clientID, clientSecret, redirectURI string) *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: p.authStyle(),
		},
	}
	if !p.customScopeSeparator() {
		cfg.Scopes = append([]string(nil), p.Scopes...)
	}
	return cfg
}

func (p ProviderProfile) authStyle() oauth2.AuthStyle {
	if p.AuthStyle == oauth2.AuthStyleInHeader {
		return oauth2.AuthStyleInHeader
	}
	return oauth2.AuthStyleInParams
}

// authOptions returns the static authorization URL options in a stable order.
func (p ProviderProfile) authOptions() []oauth2.AuthCodeOption {
	keys := make([]string, 0, len(p.ExtraAuthParams))
	for k := range p.ExtraAuthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]oauth2.AuthCodeOption, 0, len(keys)+1)
	for _, k := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(k, p.ExtraAuthParams[k]))
	}
	if p.customScopeSeparator() && len(p.Scopes) > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("scope", p.scopeParam()))
	}
	return opts
}

func (p ProviderProfile) clone() ProviderProfile {
	c := p
	c.Scopes = append([]string(nil), p.Scopes...)
	c.ExtraAuthParams = cloneStrings(p.ExtraAuthParams)
	c.ExtraTokenParams = cloneStrings(p.ExtraTokenParams)
	return c
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
