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
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/tombee/connectkit/pkg/errors"
)

// Credentials is the bundle produced by a successful code exchange or
// refresh. A Credentials value is never modified after it is returned;
// refreshes and enrichment produce new values, so one bundle can be read by
// many in-flight calls.
type Credentials struct {
	// AccessToken authenticates vendor API calls.
	AccessToken string `json:"access_token"`

	// RefreshToken is present only for providers that support refresh.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is usually "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the advisory lifetime in seconds reported by the provider.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Scope is the granted scope string, when the provider reports it.
	Scope string `json:"scope,omitempty"`

	// ObtainedAt is when the token endpoint answered.
	ObtainedAt time.Time `json:"obtained_at"`

	// ProviderFields holds every other field of the token response
	// (workspace, tenant, cloud identifiers and so on).
	ProviderFields map[string]any `json:"provider_fields,omitempty"`
}

// Validate checks the bundle can authenticate a request.
func (c *Credentials) Validate() error {
	if c == nil || c.AccessToken == "" {
		return &errors.AuthError{Reason: "no access token available"}
	}
	return nil
}

// ExpiresAt returns the advisory expiry, or the zero time when unknown.
func (c *Credentials) ExpiresAt() time.Time {
	if c == nil || c.ExpiresIn <= 0 || c.ObtainedAt.IsZero() {
		return time.Time{}
	}
	return c.ObtainedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// Expired reports whether the token is past its advisory expiry, treating
// it as expired skew early. Tokens without a known expiry never expire.
// Nothing in this package refreshes on its own; callers use this to decide.
func (c *Credentials) Expired(now time.Time, skew time.Duration) bool {
	expiresAt := c.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(expiresAt)
}

// Token converts the bundle to an oauth2.Token. Provider fields are exposed
// through Token.Extra.
func (c *Credentials) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt(),
	}
	if len(c.ProviderFields) > 0 {
		tok = tok.WithExtra(cloneFields(c.ProviderFields))
	}
	return tok
}

// SetAuthHeader sets the Authorization header on r. Slack's "bot" and
// lowercase "bearer" token types are sent as "Bearer".
func (c *Credentials) SetAuthHeader(r *http.Request) {
	tok := c.Token()
	switch tok.TokenType {
	case "bot", "user":
		tok.TokenType = "Bearer"
	}
	tok.SetAuthHeader(r)
}

// ProviderField returns a provider field.
func (c *Credentials) ProviderField(key string) (any, bool) {
	if c == nil || c.ProviderFields == nil {
		return nil, false
	}
	v, ok := c.ProviderFields[key]
	return v, ok
}

// ProviderString returns a string provider field, or "".
func (c *Credentials) ProviderString(key string) string {
	v, _ := c.ProviderField(key)
	s, _ := v.(string)
	return s
}

// WithProviderField returns a copy of the bundle with key set.
func (c *Credentials) WithProviderField(key string, value any) *Credentials {
	out := c.clone()
	if out.ProviderFields == nil {
		out.ProviderFields = make(map[string]any)
	}
	out.ProviderFields[key] = value
	return out
}

// IDTokenClaims decodes the OpenID Connect id_token returned alongside the
// access token. The signature is not verified: the token came straight from
// the provider's token endpoint over TLS and is only used for display and
// account identification.
func (c *Credentials) IDTokenClaims() (jwt.MapClaims, error) {
	raw := c.ProviderString("id_token")
	if raw == "" {
		return nil, &errors.NotFoundError{Resource: "provider field", ID: "id_token"}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to decode id_token: %w", err)
	}
	return claims, nil
}

func (c *Credentials) clone() *Credentials {
	out := *c
	out.ProviderFields = cloneFields(c.ProviderFields)
	return &out
}

func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
