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
// Command tally reads, summarizes and watches Allure test results.
package main

import (
	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/cli"
	"github.com/tombee/tally/internal/commands/management"
	"github.com/tombee/tally/internal/commands/report"
	versioncmd "github.com/tombee/tally/internal/commands/version"
	"github.com/tombee/tally/internal/commands/watch"
)

// Set with -ldflags "-X main.version=..." at release time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	groupResults    = "results"
	groupManagement = "management"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	if err := newRootCommand().Execute(); err != nil {
		cli.HandleExitError(err)
	}
}

func newRootCommand() *cobra.Command {
	root := cli.NewRootCommand()
	root.AddGroup(
		&cobra.Group{ID: groupResults, Title: "Result Commands:"},
		&cobra.Group{ID: groupManagement, Title: "Management Commands:"},
	)

	for _, cmd := range []*cobra.Command{
		report.NewListCommand(),
		report.NewSummaryCommand(),
		report.NewQueryCommand(),
		watch.NewCommand(),
	} {
		cmd.GroupID = groupResults
		root.AddCommand(cmd)
	}

	history := management.NewHistoryCommand()
	history.GroupID = groupManagement
	root.AddCommand(history, versioncmd.NewVersionCommand())

	root.SetHelpCommand(cli.NewHelpCommand(root))
	return root
}
