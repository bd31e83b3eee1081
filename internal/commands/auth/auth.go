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

// Package auth implements the "connectkit auth" commands, which run each
// connector's OAuth2 flow and keep the resulting credentials in the OS
// keychain.
package auth

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/config"
	"github.com/tombee/connectkit/internal/oauth"
)

// NewCommand creates the auth command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize connectors and manage stored credentials",
		Long: `Authorize connectors against their vendor and manage the credentials
stored in the OS keychain.

The authorization code flow has two steps:
  1. 'connectkit auth url <connector>' prints the URL to open in a browser
     and remembers the state (and PKCE verifier) it generated.
  2. After approving, the browser is redirected to the configured
     redirect_uri. Pass that full URL to
     'connectkit auth exchange <connector> --callback <url>'.

Connectors configured with 'grant: client_credentials' skip the browser:
'connectkit auth token <connector>' obtains a token directly.

Tokens are never refreshed in the background. Use 'connectkit auth refresh'
when a connector reports an expired token.`,
	}

	cmd.AddCommand(newURLCommand())
	cmd.AddCommand(newExchangeCommand())
	cmd.AddCommand(newTokenCommand())
	cmd.AddCommand(newRefreshCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newLogoutCommand())

	return cmd
}

// readPassword reads a line from the terminal without echo. Tests replace it.
var readPassword = func(fd int) ([]byte, error) {
	return term.ReadPassword(fd)
}

// isTerminal reports whether fd is a terminal. Tests replace it.
var isTerminal = term.IsTerminal

// clientSecret returns the configured client secret, prompting for it when
// none is configured and stdin is a terminal. Public clients have no secret.
func clientSecret(stderr io.Writer, name string, cc config.ConnectorConfig) (string, error) {
	if cc.ClientSecret != "" {
		return cc.ClientSecret, nil
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return "", nil
	}

	fmt.Fprintf(stderr, "Client secret for %s (hidden, empty for none): ", name)
	secret, err := readPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read client secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// requireAuthorizationCode rejects connectors that authenticate with the
// client credentials grant, which has no browser step.
func requireAuthorizationCode(name string, cc config.ConnectorConfig) error {
	if cc.ClientCredentials() {
		return shared.NewConfigError(fmt.Sprintf(
			"%s uses the client_credentials grant; run 'connectkit auth token %s' instead", name, name), nil)
	}
	return nil
}

// carryProviderFields copies provider fields from prev that next lacks, so
// values resolved at exchange time (such as a Jira cloud_id) survive a
// refresh.
func carryProviderFields(prev, next *oauth.Credentials) *oauth.Credentials {
	out := next
	for k, v := range prev.ProviderFields {
		if _, ok := out.ProviderField(k); !ok {
			out = out.WithProviderField(k, v)
		}
	}
	return out
}
