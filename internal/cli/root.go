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
package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
)

// SetVersion records build information for the version command and for
// tally --version. Call it before NewRootCommand.
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root command with the global flags bound.
// Subcommands are added by the caller.
func NewRootCommand() *cobra.Command {
	v, _, _ := shared.GetVersion()

	cmd := &cobra.Command{
		Use:   "tally",
		Short: "tally - read and summarize Allure test results",
		Long: `tally reads the Allure result files written by Go tests that use the
tally annotation library (or any Allure 2 adapter). It lists, summarizes and
queries results, keeps a sqlite history for trend and flakiness reports, and
can follow a results directory while tests run.

Results are read from the configured results directory (allure-results by
default) unless directories are passed as arguments.`,
		Version: v,

		// Errors are printed by HandleExitError with the right exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("tally version {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return shared.NewUsageError("invalid flags", err)
	})

	shared.RegisterGlobalFlags(cmd.PersistentFlags())

	return cmd
}

// HandleExitError prints err and exits with the code it carries.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
