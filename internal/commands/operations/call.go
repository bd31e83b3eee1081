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

package operations

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/operation"
)

type callResponse struct {
	shared.JSONResponse
	Operation string              `json:"operation"`
	Content   []operation.Content `json:"content"`
}

func newCallCommand() *cobra.Command {
	var rawArgs string

	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Invoke an operation with the stored credentials",
		Long: `Invoke one operation the way an MCP client would and print its result.

Arguments are a JSON object validated against the operation's input schema
before anything is sent to the vendor. Credentials come from the keychain
entry written by 'connectkit auth exchange'.`,
		Example: `  connectkit operations call slack.list_channels --args '{"limit": 20}'
  connectkit operations call jira.get_issue --args '{"issue_key": "PRJ-1"}' --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], rawArgs)
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "{}", "Operation arguments as a JSON object")
	return cmd
}

func runCall(cmd *cobra.Command, name, rawArgs string) error {
	ctx := cmd.Context()

	var input map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &input); err != nil || input == nil {
		return shared.NewUsageError(fmt.Sprintf("--args must be a JSON object, got %q", rawArgs))
	}

	rt, err := shared.LoadRuntime("")
	if err != nil {
		return err
	}
	connector := integration.ConnectorFor(name)
	reg, err := rt.Registry([]string{connector})
	if err != nil {
		return shared.Wrap("unknown operation "+name, err)
	}

	creds, err := rt.Store.Load(ctx, connector)
	if err != nil {
		return shared.Wrap("cannot call "+name, err)
	}

	env, err := reg.Invoke(ctx, name, input, creds)
	if err != nil {
		return shared.Wrap(name+" failed", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), callResponse{
			JSONResponse: shared.NewJSONResponse("operations call"),
			Operation:    name,
			Content:      env.Content,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), env.PlainText())
	return nil
}
