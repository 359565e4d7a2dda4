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

package management

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/history"
	"github.com/tombee/tally/pkg/result"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use: "history",
		Annotations: map[string]string{
			"group": "management",
		},
		Short: "Record and inspect result history",
		Long: `Commands for importing results into a sqlite history database and reading
runs, status trends and flaky tests back out of it.

The database is --db, then history.path from the config file, then
<data dir>/tally/history.db.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the history database")

	cmd.AddCommand(newHistoryImportCommand(&dbPath))
	cmd.AddCommand(newHistoryShowCommand(&dbPath))
	cmd.AddCommand(newHistoryFlakyCommand(&dbPath))
	cmd.AddCommand(newHistoryTrendCommand(&dbPath))

	return cmd
}

func newHistoryImportCommand(dbPath *string) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "import [dir...]",
		Short: "Import results into the history database",
		Long: `Import reads every result under the given directories (or the configured
results directory) and records it. Importing the same result twice is a no-op.

See also: tally history show, tally history flaky`,
		Example: `  # Example 1: Import the configured results directory
  tally history import

  # Example 2: Import only failures into a project database
  tally history import out/results --db .tally/history.db --filter 'status == "failed"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			rs, err := shared.LoadResults(cfg, args, filter)
			if err != nil {
				return err
			}

			store, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(cmd.Context(), rs)
			if err != nil {
				return fmt.Errorf("failed to import results: %w", err)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Imported int `json:"imported"`
				}{shared.NewResponse("history import", true), n})
			}
			if !shared.GetQuiet() {
				fmt.Fprintf(out, "Imported %d results\n", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only import results matching an expr-lang expression")

	return cmd
}

func newHistoryShowCommand(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <history-id>",
		Short: "Show the recorded runs of one test",
		Long: `Show lists the runs recorded for a history id, newest first. The history id
is the historyId field of a result file.`,
		Example: `  # Example 1: Show the last 10 runs
  tally history show 5d41402abc4b2a76b9719d911017c592 --limit 10

  # Example 2: Show every run as JSON
  tally history show 5d41402abc4b2a76b9719d911017c592 --limit 0 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					HistoryID string           `json:"history_id"`
					Runs      []*history.Entry `json:"runs"`
				}{shared.NewResponse("history show", true), args[0], entries})
			}
			writeEntries(out, shared.NewStyler(out), entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func newHistoryFlakyCommand(dbPath *string) *cobra.Command {
	var minRuns int

	cmd := &cobra.Command{
		Use:   "flaky",
		Short: "List tests that both passed and failed",
		Long: `Flaky lists every history id with at least --min-runs recorded runs where at
least one run passed and at least one failed or broke.`,
		Example: `  tally history flaky
  tally history flaky --min-runs 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			flaky, err := store.Flaky(cmd.Context(), minRuns)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				if flaky == nil {
					flaky = []history.FlakyTest{}
				}
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Flaky []history.FlakyTest `json:"flaky"`
				}{shared.NewResponse("history flaky", true), flaky})
			}

			if len(flaky) == 0 {
				fmt.Fprintln(out, "No flaky tests found")
				return nil
			}
			fmt.Fprintln(out, "RUNS PASSED FAILED TEST")
			fmt.Fprintln(out, "---- ------ ------ ----------------------------------------")
			for _, f := range flaky {
				fmt.Fprintf(out, "%-4d %-6d %-6d %s\n", f.Runs, f.Passed, f.Failed, f.FullName)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minRuns, "min-runs", 2, "Minimum number of recorded runs")

	return cmd
}

func newHistoryTrendCommand(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Count recent results by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, *dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			trend, err := store.Trend(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Total int           `json:"total"`
					Trend history.Trend `json:"trend"`
				}{shared.NewResponse("history trend", true), trend.Total(), trend})
			}

			styler := shared.NewStyler(out)
			statuses := make([]result.Status, 0, len(trend))
			for s := range trend {
				statuses = append(statuses, s)
			}
			sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
			for _, s := range statuses {
				fmt.Fprintf(out, "%s %-8s %d\n", styler.Status(s), s, trend[s])
			}
			fmt.Fprintf(out, "Total: %d\n", trend.Total())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Only count the most recent results (0 for all)")

	return cmd
}

// historyPath resolves the database file: the flag, then the config, then
// the data directory.
func historyPath(cfg *config.Config, flag string) string {
	switch {
	case flag != "":
		return flag
	case cfg.History.Path != "":
		return cfg.History.Path
	default:
		return filepath.Join(config.DataDir(), "history.db")
	}
}

func openStore(cfg *config.Config, flag string) (*history.Store, error) {
	path := historyPath(cfg, flag)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, shared.NewConfigError("failed to create history directory", err)
		}
	}
	store, err := history.Open(history.Config{Path: path})
	if err != nil {
		return nil, shared.NewConfigError(fmt.Sprintf("failed to open history database %s", path), err)
	}
	return store, nil
}

func writeEntries(w io.Writer, styler shared.Styler, entries []*history.Entry) {
	fmt.Fprintf(w, "%s\n\n", entries[0].FullName)
	for _, e := range entries {
		started := time.UnixMilli(e.Start).Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "%s %s %s %s\n", styler.Status(e.Status), started, e.Duration(), styler.RenderLabel(e.UUID))
	}
}
