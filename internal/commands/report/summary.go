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
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/results"
)

// summaryOptions holds summary flags
type summaryOptions struct {
	output     string
	outputFile string
	filter     string
}

// NewSummaryCommand creates the summary command
func NewSummaryCommand() *cobra.Command {
	var opts summaryOptions

	cmd := &cobra.Command{
		Use:   "summary [dir...]",
		Short: "Summarize results by status",
		Long: `Summary prints every result and the counts by status.

Exit codes:
  0 - No failed or broken results
  1 - At least one result failed or broke
  2 - Invalid flags or filter
  3 - No results found
  4 - Configuration error`,
		Example: `  tally summary
  tally summary --output junit --output-file junit.xml
  tally summary out/results --filter 'labels.suite == "TestLogin"'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", results.FormatHuman, "Output format: human, junit or json")
	cmd.Flags().StringVar(&opts.outputFile, "output-file", "", "Write output to a file instead of stdout")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Only include results matching an expr-lang expression")

	return cmd
}

func runSummary(cmd *cobra.Command, args []string, opts summaryOptions) error {
	format := opts.output
	if shared.GetJSON() {
		format = results.FormatJSON
	}
	switch format {
	case results.FormatHuman, results.FormatJUnit, results.FormatJSON:
	default:
		return shared.NewUsageError(fmt.Sprintf("unknown --output %q (want human, junit or json)", format), nil)
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	rs, err := shared.LoadResults(cfg, args, opts.filter)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if !(shared.GetQuiet() && opts.outputFile == "" && format == results.FormatHuman) {
		if err := results.Write(out, format, rs, shared.GetVerbose()); err != nil {
			return err
		}
	}

	if s := results.Summarize(rs); s.HasFailures() {
		return shared.NewTestsFailedError(s.Failed, s.Broken)
	}
	return nil
}
