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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/secrets"
)

type urlResponse struct {
	shared.JSONResponse
	Connector   string `json:"connector"`
	URL         string `json:"url"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
	PKCE        bool   `json:"pkce"`
}

func newURLCommand() *cobra.Command {
	var state, redirectURI string

	cmd := &cobra.Command{
		Use:   "url <connector>",
		Short: "Print the authorization URL for a connector",
		Example: `  connectkit auth url slack
  connectkit auth url jira --redirect-uri http://localhost:8976/callback`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURL(cmd, args[0], state, redirectURI)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Anti-CSRF state to embed (default: random)")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Override the configured redirect URI")

	return cmd
}

func runURL(cmd *cobra.Command, name, state, redirectURI string) error {
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}
	_, cc, mgr, err := rt.OAuthClient(name)
	if err != nil {
		return shared.Wrap("cannot authorize "+name, err)
	}
	if err := requireAuthorizationCode(name, cc); err != nil {
		return err
	}
	if redirectURI == "" {
		redirectURI = cc.RedirectURI
	}

	req, err := mgr.BuildAuthorizationURL(cc.ClientID, redirectURI, state)
	if err != nil {
		return shared.Wrap("failed to build authorization URL", err)
	}

	pending := secrets.Pending{
		State:       req.State,
		RedirectURI: redirectURI,
		CreatedAt:   time.Now().UTC(),
	}
	if req.PKCE != nil {
		pending.CodeVerifier = req.PKCE.Verifier()
	}
	if err := rt.Store.SavePending(cmd.Context(), name, pending); err != nil {
		return shared.Wrap("failed to remember pending authorization", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), urlResponse{
			JSONResponse: shared.NewJSONResponse("auth url"),
			Connector:    name,
			URL:          req.URL,
			State:        req.State,
			RedirectURI:  redirectURI,
			PKCE:         req.PKCE != nil,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), req.URL)
	if !shared.Globals().Quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), shared.Muted.Render(fmt.Sprintf(
			"Open the URL above, approve access, then run:\n  connectkit auth exchange %s --callback '<redirected URL>'", name)))
	}
	return nil
}
