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

// Package cli assembles the connectkit command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/auth"
	"github.com/tombee/connectkit/internal/commands/operations"
	"github.com/tombee/connectkit/internal/commands/serve"
	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/commands/version"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectkit",
		Short: "OAuth-authorized SaaS operations for MCP clients",
		Long: `connectkit exposes typed operations against SaaS APIs (Slack, Jira) as MCP
tools, and runs the OAuth2 flows that authorize them.

Get started:
  connectkit auth url slack            # open the printed URL and approve
  connectkit auth exchange slack --callback '<redirected URL>'
  connectkit serve --connector slack   # add this to your MCP client config`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	shared.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "other", Title: "Other Commands:"},
	)
	for _, sub := range []*cobra.Command{serve.NewCommand(), auth.NewCommand(), operations.NewCommand()} {
		sub.GroupID = "core"
		cmd.AddCommand(sub)
	}
	v := version.NewCommand()
	v.GroupID = "other"
	cmd.AddCommand(v)
	cmd.SetHelpCommandGroupID("other")
	cmd.SetCompletionCommandGroupID("other")

	return cmd
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
