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
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tombee/connectkit/internal/log"
	"github.com/tombee/connectkit/pkg/errors"
)

// ReasonNoCode is the AuthError reason for a callback without a code.
const ReasonNoCode = "No authorization code received"

// maxTokenResponseBytes bounds how much of a token response is read.
const maxTokenResponseBytes = 1 << 20

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
	grantClientCredentials = "client_credentials"
)

// fields lifted out of token responses into named Credentials fields;
// everything else lands in ProviderFields.
var knownTokenFields = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token_type":    true,
	"expires_in":    true,
	"scope":         true,
}

var tracer = otel.Tracer("github.com/tombee/connectkit/internal/oauth")

// HTTPDoer is the subset of *http.Client the manager needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthorizationRequest is the result of BuildAuthorizationURL.
type AuthorizationRequest struct {
	// URL is where the user agent should be sent.
	URL string `json:"url"`

	// State is the anti-CSRF value embedded in URL.
	State string `json:"state"`

	// PKCE is set when the profile requires PKCE. Its verifier must be
	// passed to ExchangeCode.
	PKCE *PKCEState `json:"pkce,omitempty"`
}

// ExchangeRequest carries the inputs of an authorization code exchange.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(client HTTPDoer) Option {
	return func(m *Manager) {
		if client != nil {
			m.client = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for ObtainedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager runs the OAuth2 flows for one provider. It keeps no token state
// between calls and is safe for concurrent use.
type Manager struct {
	profile ProviderProfile
	client  HTTPDoer
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a manager for profile.
func NewManager(profile ProviderProfile, opts ...Option) (*Manager, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		profile: profile.clone(),
		client:  http.DefaultClient,
		logger:  log.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.WithComponent(m.logger, "oauth").With(slog.String("provider", m.profile.Name))

	return m, nil
}

// Profile returns a copy of the manager's provider profile.
func (m *Manager) Profile() ProviderProfile {
	return m.profile.clone()
}

// BuildAuthorizationURL composes the provider authorization URL. An empty
// state is replaced with a random one; the state actually used is returned.
// When the profile requires PKCE a new verifier/challenge pair is generated
// and returned; the manager does not retain it.
func (m *Manager) BuildAuthorizationURL(clientID, redirectURI, state string) (*AuthorizationRequest, error) {
	if clientID == "" {
		return nil, &errors.ConfigurationError{Key: "client_id", Reason: "client id is required"}
	}
	if state == "" {
		state = uuid.NewString()
	}

	cfg := m.profile.oauth2Config(clientID, "", redirectURI)
	opts := m.profile.authOptions()

	req := &AuthorizationRequest{State: state}
	if m.profile.PKCE {
		pkce, err := NewPKCE()
		if err != nil {
			return nil, err
		}
		req.PKCE = pkce
		opts = append(opts, oauth2.S256ChallengeOption(pkce.CodeVerifier))
	}

	req.URL = cfg.AuthCodeURL(state, opts...)
	return req, nil
}

// ExchangeCode trades an authorization code for credentials. An empty code
// fails with an AuthError before any network call.
func (m *Manager) ExchangeCode(ctx context.Context, req ExchangeRequest) (*Credentials, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &errors.AuthError{Reason: ReasonNoCode}
	}
	if m.profile.PKCE && req.CodeVerifier == "" {
		return nil, &errors.AuthError{Reason: "PKCE code verifier is required for this provider"}
	}

	form := url.Values{}
	form.Set("grant_type", grantAuthorizationCode)
	form.Set("code", req.Code)
	if req.RedirectURI != "" {
		form.Set("redirect_uri", req.RedirectURI)
	}
	if req.CodeVerifier != "" {
		form.Set("code_verifier", req.CodeVerifier)
	}

	return m.tokenRequest(ctx, grantAuthorizationCode, form, req.ClientID, req.ClientSecret)
}

// ExchangeCallback parses a callback URL and exchanges its code. The
// request's Code field is ignored.
func (m *Manager) ExchangeCallback(ctx context.Context, callbackURL, expectedState string, req ExchangeRequest) (*Credentials, error) {
	code, err := ParseCallback(callbackURL, expectedState)
	if err != nil {
		return nil, err
	}
	req.Code = code
	return m.ExchangeCode(ctx, req)
}

// RefreshAccessToken obtains new credentials from a refresh token. When the
// provider does not rotate the refresh token, the input token is carried
// into the result unchanged.
func (m *Manager) RefreshAccessToken(ctx context.Context, refreshToken, clientID, clientSecret string) (*Credentials, error) {
	if refreshToken == "" {
		return nil, &errors.AuthError{Reason: "No refresh token available"}
	}

	form := url.Values{}
	form.Set("grant_type", grantRefreshToken)
	form.Set("refresh_token", refreshToken)

	creds, err := m.tokenRequest(ctx, grantRefreshToken, form, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}
	return creds, nil
}

// ClientCredentials runs the client credentials grant for server-to-server
// connectors. It goes through x/oauth2's clientcredentials package, so the
// only provider field captured is id_token.
func (m *Manager) ClientCredentials(ctx context.Context, clientID, clientSecret string) (*Credentials, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "oauth.token",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oauth.provider", m.profile.Name),
			attribute.String("oauth.grant_type", grantClientCredentials),
		),
	)
	defer span.End()

	cc := &clientcredentials.Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		TokenURL:       m.profile.TokenURL,
		AuthStyle:      m.profile.authStyle(),
		EndpointParams: url.Values{},
	}
	if m.profile.customScopeSeparator() {
		if len(m.profile.Scopes) > 0 {
			cc.EndpointParams.Set("scope", m.profile.scopeParam())
		}
	} else {
		cc.Scopes = append([]string(nil), m.profile.Scopes...)
	}
	for k, v := range m.profile.ExtraTokenParams {
		cc.EndpointParams.Set(k, v)
	}
	if hc, ok := m.client.(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}

	tok, err := cc.Token(ctx)
	if err != nil {
		recordTokenRequest(m.profile.Name, grantClientCredentials, "error", time.Since(start).Seconds())
		span.SetStatus(codes.Error, err.Error())
		authErr := &errors.AuthError{Reason: "client credentials request failed", Cause: err}
		var retrieveErr *oauth2.RetrieveError
		if stderrors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
			authErr.RawBody = string(retrieveErr.Body)
		}
		return nil, authErr
	}

	now := m.now()
	creds := &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ObtainedAt:   now,
	}
	if secs, ok := extraSeconds(tok.Extra("expires_in")); ok {
		creds.ExpiresIn = secs
	} else if !tok.Expiry.IsZero() {
		creds.ExpiresIn = int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		creds = creds.WithProviderField("id_token", idToken)
	}
	recordTokenRequest(m.profile.Name, grantClientCredentials, "ok", time.Since(start).Seconds())
	return creds, nil
}

// extraSeconds reads a raw token response value as whole seconds. JSON
// bodies decode numbers as float64; form-encoded bodies carry strings.
func extraSeconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		secs, err := strconv.ParseInt(n, 10, 64)
		return secs, err == nil
	default:
		return 0, false
	}
}

// tokenRequest performs exactly one token endpoint call.
func (m *Manager) tokenRequest(ctx context.Context, grantType string, form url.Values, clientID, clientSecret string) (*Credentials, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "oauth.token",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oauth.provider", m.profile.Name),
			attribute.String("oauth.grant_type", grantType),
		),
	)
	defer span.End()

	creds, err := m.doTokenRequest(ctx, grantType, form, clientID, clientSecret)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn("token request failed",
			slog.String("grant_type", grantType),
			log.Error(err),
		)
	} else {
		m.logger.Debug("token request succeeded",
			slog.String("grant_type", grantType),
			slog.String("access_token", log.SanitizeAPIKey(creds.AccessToken)),
			slog.Int64("expires_in", creds.ExpiresIn),
		)
	}
	recordTokenRequest(m.profile.Name, grantType, outcome, time.Since(start).Seconds())

	return creds, err
}

func (m *Manager) doTokenRequest(ctx context.Context, grantType string, form url.Values, clientID, clientSecret string) (*Credentials, error) {
	for k, v := range m.profile.ExtraTokenParams {
		if form.Get(k) == "" {
			form.Set(k, v)
		}
	}

	inHeader := m.profile.authStyle() == oauth2.AuthStyleInHeader
	if !inHeader {
		if clientID != "" {
			form.Set("client_id", clientID)
		}
		if clientSecret != "" {
			form.Set("client_secret", clientSecret)
		}
	}

	body, contentType, err := m.encodeTokenBody(form)
	if err != nil {
		return nil, &errors.AuthError{Reason: "failed to encode token request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.profile.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, &errors.AuthError{Reason: "failed to build token request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if inHeader {
		httpReq.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, &errors.AuthError{Reason: fmt.Sprintf("%s request failed", grantType), Cause: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rawBody := ""
		if readErr == nil {
			rawBody = string(raw)
		}
		return nil, &errors.AuthError{
			Reason:     fmt.Sprintf("%s request rejected", grantType),
			StatusCode: resp.StatusCode,
			RawBody:    rawBody,
		}
	}
	if readErr != nil {
		return nil, &errors.AuthError{Reason: "failed to read token response", Cause: readErr}
	}

	fields, err := parseTokenResponse(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &errors.AuthError{
			Reason:     "failed to parse token response",
			StatusCode: resp.StatusCode,
			RawBody:    string(raw),
			Cause:      err,
		}
	}

	// Some providers (Slack, GitHub) report failures with a 2xx status.
	if providerErr := stringField(fields, "error"); providerErr != "" {
		reason := providerErr
		if desc := stringField(fields, "error_description"); desc != "" {
			reason = fmt.Sprintf("%s: %s", providerErr, desc)
		}
		return nil, &errors.AuthError{Reason: reason, StatusCode: resp.StatusCode, RawBody: string(raw)}
	}

	return credentialsFromFields(fields, string(raw), m.now())
}

func (m *Manager) encodeTokenBody(form url.Values) ([]byte, string, error) {
	if m.profile.TokenRequestFormat == TokenRequestJSON {
		payload := make(map[string]string, len(form))
		for k := range form {
			payload[k] = form.Get(k)
		}
		data, err := json.Marshal(payload)
		return data, "application/json", err
	}
	return []byte(form.Encode()), "application/x-www-form-urlencoded", nil
}

// parseTokenResponse decodes a JSON or form-encoded token response.
func parseTokenResponse(raw []byte, contentType string) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	trimmed := bytes.TrimSpace(raw)

	if (mediaType == "application/x-www-form-urlencoded" || mediaType == "text/plain") &&
		!bytes.HasPrefix(trimmed, []byte("{")) {
		values, err := url.ParseQuery(string(trimmed))
		if err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(values))
		for k := range values {
			fields[k] = values.Get(k)
		}
		return fields, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func credentialsFromFields(fields map[string]any, raw string, now time.Time) (*Credentials, error) {
	creds := &Credentials{
		AccessToken:  stringField(fields, "access_token"),
		RefreshToken: stringField(fields, "refresh_token"),
		TokenType:    stringField(fields, "token_type"),
		Scope:        stringField(fields, "scope"),
		ExpiresIn:    intField(fields, "expires_in"),
		ObtainedAt:   now,
	}
	if creds.AccessToken == "" {
		return nil, &errors.AuthError{Reason: "token response did not include an access_token", RawBody: raw}
	}

	for k, v := range fields {
		if knownTokenFields[k] {
			continue
		}
		if creds.ProviderFields == nil {
			creds.ProviderFields = make(map[string]any)
		}
		creds.ProviderFields[k] = v
	}
	return creds, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// intField accepts numbers and numeric strings; some providers send
// expires_in as "3600".
func intField(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
