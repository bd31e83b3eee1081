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
)

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <connector>",
		Short: "Delete a connector's stored credentials",
		Long: `Delete the credentials and any pending authorization stored for a connector.
Tokens are not revoked at the vendor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			rt, err := shared.LoadRuntime("")
			if err != nil {
				return err
			}
			if err := rt.Store.Delete(cmd.Context(), name); err != nil {
				return shared.Wrap("failed to delete credentials", err)
			}
			if !shared.Globals().Quiet && !shared.GetJSON() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("Removed credentials for "+name))
			}
			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), shared.NewJSONResponse("auth logout"))
			}
			return nil
		},
	}
}
