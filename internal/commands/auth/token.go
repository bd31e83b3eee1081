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

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/config"
	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/oauth"
)

func newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <connector>",
		Short: "Obtain a token with the client credentials grant",
		Long: `Obtain an access token for a connector configured with
'grant: client_credentials' and store it in the OS keychain.

The connector authenticates as itself, so no browser step is involved.
Run the command again, or 'connectkit auth refresh', to replace an
expired token.`,
		Example: `  connectkit auth token jira`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, args[0])
		},
	}
}

func runToken(cmd *cobra.Command, name string) error {
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}
	conn, cc, mgr, err := rt.OAuthClient(name)
	if err != nil {
		return shared.Wrap("cannot authorize "+name, err)
	}
	if !cc.ClientCredentials() {
		return shared.NewConfigError(fmt.Sprintf(
			"%s does not use the client_credentials grant; set connectors.%s.grant or run 'connectkit auth url %s'", name, name, name), nil)
	}

	creds, err := issueClientToken(cmd, rt, name, conn, cc, mgr)
	if err != nil {
		return err
	}
	return reportStored(cmd, "auth token", name, creds, "Issued token for")
}

// issueClientToken runs the client credentials grant, enriches the result
// like an exchange would, and stores it.
func issueClientToken(cmd *cobra.Command, rt *shared.Runtime, name string, conn api.Connector, cc config.ConnectorConfig, mgr *oauth.Manager) (*oauth.Credentials, error) {
	ctx := cmd.Context()

	secret, err := clientSecret(cmd.ErrOrStderr(), name, cc)
	if err != nil {
		return nil, err
	}

	creds, err := mgr.ClientCredentials(ctx, cc.ClientID, secret)
	if err != nil {
		return nil, shared.Wrap("client credentials grant failed", err)
	}

	if enricher, ok := conn.(api.Enricher); ok {
		creds, err = enricher.Enrich(ctx, creds)
		if err != nil {
			return nil, shared.Wrap("failed to complete "+name+" authorization", err)
		}
	}

	if err := rt.Store.Save(ctx, name, creds); err != nil {
		return nil, shared.Wrap("failed to store credentials", err)
	}
	return creds, nil
}
