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
	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
)

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <connector>",
		Short: "Refresh a connector's access token",
		Long: `Trade the stored refresh token for a new access token and store the result.
Provider fields resolved at authorization time are kept.

Connectors using the client_credentials grant have no refresh token; their
token is obtained again instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, args[0])
		},
	}
}

func runRefresh(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}
	conn, cc, mgr, err := rt.OAuthClient(name)
	if err != nil {
		return shared.Wrap("cannot refresh "+name, err)
	}
	if cc.ClientCredentials() {
		creds, err := issueClientToken(cmd, rt, name, conn, cc, mgr)
		if err != nil {
			return err
		}
		return reportStored(cmd, "auth refresh", name, creds, "Refreshed")
	}

	prev, err := rt.Store.Load(ctx, name)
	if err != nil {
		return shared.Wrap("cannot refresh "+name, err)
	}

	secret, err := clientSecret(cmd.ErrOrStderr(), name, cc)
	if err != nil {
		return err
	}

	creds, err := mgr.RefreshAccessToken(ctx, prev.RefreshToken, cc.ClientID, secret)
	if err != nil {
		return shared.Wrap("token refresh failed", err)
	}
	creds = carryProviderFields(prev, creds)

	if err := rt.Store.Save(ctx, name, creds); err != nil {
		return shared.Wrap("failed to store credentials", err)
	}
	return reportStored(cmd, "auth refresh", name, creds, "Refreshed")
}
