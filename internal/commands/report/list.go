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

// Package report implements the commands that read a results directory:
// list, summary and query.
package report

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/pkg/result"
)

// ListEntry is one result in list output.
type ListEntry struct {
	UUID       string        `json:"uuid"`
	Name       string        `json:"name"`
	FullName   string        `json:"full_name"`
	Status     result.Status `json:"status"`
	DurationMS int64         `json:"duration_ms"`
	Steps      int           `json:"steps"`
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list [dir...]",
		Short: "List results",
		Long: `List prints one line per result: status, name, duration and step count.

Results are read from the configured results directory unless directories or
result files are given.`,
		Example: `  tally list
  tally list out/allure-results --filter 'status == "failed"'
  tally list --filter '"smoke" in tags && duration > 1000'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", `Only include results matching an expr-lang expression (e.g. status == "failed")`)

	return cmd
}

func runList(cmd *cobra.Command, args []string, filter string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	rs, err := shared.LoadResults(cfg, args, filter)
	if err != nil {
		return err
	}

	entries := make([]ListEntry, len(rs))
	for i, r := range rs {
		entries[i] = ListEntry{
			UUID:       r.UUID,
			Name:       r.Name,
			FullName:   r.FullName,
			Status:     r.Status,
			DurationMS: r.Duration().Milliseconds(),
			Steps:      r.CountSteps(),
		}
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Results []ListEntry `json:"results"`
		}{shared.NewResponse("list", true), entries})
	}

	styler := shared.NewStyler(out)
	for _, e := range entries {
		line := fmt.Sprintf("%s %s %s", styler.Status(e.Status), e.Name,
			styler.RenderLabel(fmt.Sprintf("(%s, %d steps)", time.Duration(e.DurationMS)*time.Millisecond, e.Steps)))
		if shared.GetVerbose() && e.FullName != e.Name {
			line += " " + styler.RenderLabel(e.FullName)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
