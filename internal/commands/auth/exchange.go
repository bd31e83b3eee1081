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

package auth

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/oauth"
	"github.com/tombee/connectkit/pkg/errors"
)

// credentialSummary describes stored credentials without their secrets.
type credentialSummary struct {
	shared.JSONResponse
	Connector      string     `json:"connector"`
	TokenType      string     `json:"token_type,omitempty"`
	Scope          string     `json:"scope,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Refreshable    bool       `json:"refreshable"`
	Account        string     `json:"account,omitempty"`
	ProviderFields []string   `json:"provider_fields,omitempty"`
}

func newExchangeCommand() *cobra.Command {
	var callback, verifier, state string

	cmd := &cobra.Command{
		Use:   "exchange <connector>",
		Short: "Exchange an authorization callback for credentials",
		Long: `Exchange the authorization code in a redirect callback URL for tokens and
store them in the OS keychain.

The state and PKCE verifier remembered by 'connectkit auth url' are used and
then discarded. --state and --verifier supply them for an authorization that
was started elsewhere.`,
		Example: `  connectkit auth exchange slack --callback 'http://localhost:8976/callback?code=abc&state=xyz'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExchange(cmd, args[0], callback, state, verifier)
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "", "Full redirect URL received after approval")
	cmd.Flags().StringVar(&verifier, "verifier", "", "PKCE code verifier (default: the one from 'auth url')")
	cmd.Flags().StringVar(&state, "state", "", "Expected state (default: the one from 'auth url')")
	_ = cmd.MarkFlagRequired("callback")

	return cmd
}

func runExchange(cmd *cobra.Command, name, callback, state, verifier string) error {
	ctx := cmd.Context()
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}
	conn, cc, mgr, err := rt.OAuthClient(name)
	if err != nil {
		return shared.Wrap("cannot authorize "+name, err)
	}
	if err := requireAuthorizationCode(name, cc); err != nil {
		return err
	}

	redirectURI := cc.RedirectURI
	pending, err := rt.Store.TakePending(ctx, name)
	switch {
	case err == nil:
		if state == "" {
			state = pending.State
		}
		if verifier == "" {
			verifier = pending.CodeVerifier
		}
		if pending.RedirectURI != "" {
			redirectURI = pending.RedirectURI
		}
	case errors.Classify(err) == errors.TypeNotFound && state != "":
	default:
		return shared.Wrap(fmt.Sprintf("no authorization in progress for %s; run 'connectkit auth url %s' first", name, name), err)
	}

	secret, err := clientSecret(cmd.ErrOrStderr(), name, cc)
	if err != nil {
		return err
	}

	creds, err := mgr.ExchangeCallback(ctx, callback, state, oauth.ExchangeRequest{
		ClientID:     cc.ClientID,
		ClientSecret: secret,
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	if err != nil {
		return shared.Wrap("token exchange failed", err)
	}

	if enricher, ok := conn.(api.Enricher); ok {
		creds, err = enricher.Enrich(ctx, creds)
		if err != nil {
			return shared.Wrap("failed to complete "+name+" authorization", err)
		}
	}

	if err := rt.Store.Save(ctx, name, creds); err != nil {
		return shared.Wrap("failed to store credentials", err)
	}
	return reportStored(cmd, "auth exchange", name, creds, "Authorized")
}

func summarize(command, name string, creds *oauth.Credentials) credentialSummary {
	s := credentialSummary{
		JSONResponse: shared.NewJSONResponse(command),
		Connector:    name,
		TokenType:    creds.TokenType,
		Scope:        creds.Scope,
		Refreshable:  creds.RefreshToken != "",
		Account:      accountFor(creds),
	}
	if exp := creds.ExpiresAt(); !exp.IsZero() {
		s.ExpiresAt = &exp
	}
	for k := range creds.ProviderFields {
		s.ProviderFields = append(s.ProviderFields, k)
	}
	sort.Strings(s.ProviderFields)
	return s
}

func reportStored(cmd *cobra.Command, command, name string, creds *oauth.Credentials, verb string) error {
	summary := summarize(command, name, creds)
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), summary)
	}
	if shared.Globals().Quiet {
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s %s", verb, name)))
	if summary.Account != "" {
		fmt.Fprintf(out, "  account: %s\n", summary.Account)
	}
	if summary.Scope != "" {
		fmt.Fprintf(out, "  scope:   %s\n", summary.Scope)
	}
	if summary.ExpiresAt != nil {
		fmt.Fprintf(out, "  expires: %s\n", summary.ExpiresAt.Local().Format(time.RFC3339))
	}
	return nil
}
