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

package report

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/results"
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	var (
		filter  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <jq-expression> [dir...]",
		Short: "Run a jq expression over the results",
		Long: `Query runs a jq expression (gojq) over the results, presented as a JSON
array of Allure result objects, and prints the output as JSON.`,
		Example: `  tally query '[.[] | select(.status == "failed") | .fullName]'
  tally query 'group_by(.status) | map({(.[0].status): length}) | add' out/results`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expression := args[0]
			if err := results.ValidateQuery(expression); err != nil {
				return shared.NewUsageError("invalid query", err)
			}

			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			rs, err := shared.LoadResults(cfg, args[1:], filter)
			if err != nil {
				return err
			}

			out, err := results.Query(cmd.Context(), expression, rs, timeout)
			if err != nil {
				return shared.NewUsageError("query failed", err)
			}
			return shared.EmitJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only include results matching an expr-lang expression")
	cmd.Flags().DurationVar(&timeout, "timeout", results.DefaultQueryTimeout, "Maximum query run time")

	return cmd
}
