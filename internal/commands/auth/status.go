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
	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/oauth"
)

type connectorStatus struct {
	Connector     string     `json:"connector"`
	Configured    bool       `json:"configured"`
	Authenticated bool       `json:"authenticated"`
	Expired       bool       `json:"expired"`
	Refreshable   bool       `json:"refreshable"`
	Account       string     `json:"account,omitempty"`
	Scope         string     `json:"scope,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type statusResponse struct {
	shared.JSONResponse
	Connectors []connectorStatus `json:"connectors"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [connector...]",
		Short: "Show stored credentials for each connector",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args)
		},
	}
}

func runStatus(cmd *cobra.Command, names []string) error {
	ctx := cmd.Context()
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}

	if len(names) == 0 {
		stored, err := rt.Store.List(ctx)
		if err != nil {
			return shared.Wrap("failed to read credential store", err)
		}
		names = union(integration.Names(), rt.Config.ConnectorNames(), stored)
	}

	now := time.Now()
	statuses := make([]connectorStatus, 0, len(names))
	for _, name := range names {
		_, configured := rt.Config.Connectors[name]
		st := connectorStatus{Connector: name, Configured: configured}

		creds, err := rt.Store.Load(ctx, name)
		if err != nil {
			st.Error = err.Error()
		} else {
			st.Authenticated = true
			st.Scope = creds.Scope
			st.Refreshable = creds.RefreshToken != ""
			st.Account = accountFor(creds)
			if exp := creds.ExpiresAt(); !exp.IsZero() {
				st.ExpiresAt = &exp
				st.Expired = creds.Expired(now, 0)
			}
		}
		statuses = append(statuses, st)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), statusResponse{
			JSONResponse: shared.NewJSONResponse("auth status"),
			Connectors:   statuses,
		})
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{st.Connector, statusLabel(st), st.Account, st.Scope, expiryLabel(st, now)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderTable([]string{"CONNECTOR", "STATUS", "ACCOUNT", "SCOPE", "EXPIRES"}, rows))
	return nil
}

// accountFor names the identity behind creds from its OpenID Connect
// id_token. Bundles without one have no account to show.
func accountFor(creds *oauth.Credentials) string {
	claims, err := creds.IDTokenClaims()
	if err != nil {
		return ""
	}
	for _, key := range []string{"email", "preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func statusLabel(st connectorStatus) string {
	switch {
	case !st.Authenticated:
		return shared.Muted.Render("not authorized")
	case st.Expired && st.Refreshable:
		return shared.StatusWarn.Render("expired (refreshable)")
	case st.Expired:
		return shared.StatusError.Render("expired")
	default:
		return shared.StatusOK.Render("authorized")
	}
}

func expiryLabel(st connectorStatus, now time.Time) string {
	if st.ExpiresAt == nil {
		if st.Authenticated {
			return "never"
		}
		return ""
	}
	if st.Expired {
		return fmt.Sprintf("%s ago", now.Sub(*st.ExpiresAt).Round(time.Minute))
	}
	return fmt.Sprintf("in %s", st.ExpiresAt.Sub(now).Round(time.Minute))
}

func union(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}
