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

// Package operations implements "connectkit operations", which lists the
// operations built-in connectors provide and invokes them directly.
package operations

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/connectkit/internal/commands/shared"
	"github.com/tombee/connectkit/internal/integration"
	"github.com/tombee/connectkit/internal/operation"
)

// Info describes one operation for JSON output.
type Info struct {
	Name         string         `json:"name"`
	Connector    string         `json:"connector"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Required     []string       `json:"required,omitempty"`
	InputSchema  map[string]any `json:"input_schema"`
	ResultFilter string         `json:"result_filter,omitempty"`
}

type listResponse struct {
	shared.JSONResponse
	Operations []Info `json:"operations"`
}

// NewCommand creates the operations command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "Explore the operations connectors provide",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newCallCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [pattern...]",
		Short: "List operations, optionally filtered by glob patterns",
		Example: `  connectkit operations list
  connectkit operations list 'slack.*'
  connectkit operations list --json | jq -r '.operations[].name'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			names, err := reg.Select(args...)
			if err != nil {
				return shared.Wrap("invalid pattern", err)
			}

			selected := make(map[string]bool, len(names))
			for _, name := range names {
				selected[name] = true
			}
			infos := make([]Info, 0, len(names))
			for _, d := range reg.Descriptors() {
				if selected[d.Name] {
					infos = append(infos, describe(d))
				}
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), listResponse{
					JSONResponse: shared.NewJSONResponse("operations list"),
					Operations:   infos,
				})
			}

			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("No operations match."))
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{info.Name, info.Category, strings.Join(info.Tags, ","), info.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderTable([]string{"OPERATION", "CATEGORY", "TAGS", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <operation>",
		Short: "Show an operation's input schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry()
			if err != nil {
				return err
			}
			d, err := reg.Get(args[0])
			if err != nil {
				return shared.Wrap("unknown operation", err)
			}
			info := describe(d)

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, shared.Header.Render(info.Name))
			if info.Description != "" {
				fmt.Fprintln(out, info.Description)
			}
			if len(info.Required) > 0 {
				fmt.Fprintf(out, "\nRequired: %s\n", strings.Join(info.Required, ", "))
			}
			if info.ResultFilter != "" {
				fmt.Fprintf(out, "Result filter: %s\n", info.ResultFilter)
			}
			schema, err := json.MarshalIndent(info.InputSchema, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nInput schema:\n%s\n", schema)
			return nil
		},
	}
}

func loadRegistry() (*operation.Registry, error) {
	rt, err := shared.LoadRuntime("")
	if err != nil {
		return nil, err
	}
	return rt.Registry(integration.Names())
}

func describe(d operation.Descriptor) Info {
	return Info{
		Name:         d.Name,
		Connector:    integration.ConnectorFor(d.Name),
		Description:  d.Description,
		Category:     d.Category,
		Tags:         d.Tags,
		Required:     d.Input.RequiredFields(),
		InputSchema:  d.Input.JSONSchema(),
		ResultFilter: d.ResultFilter,
	}
}
