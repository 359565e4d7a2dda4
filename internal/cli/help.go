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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tombee/tally/internal/commands/shared"
)

// CommandMetadata describes one command in JSON help output. Subcommands
// are described recursively.
type CommandMetadata struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Group       string            `json:"group,omitempty"`
	Short       string            `json:"short"`
	Long        string            `json:"long,omitempty"`
	Usage       string            `json:"usage"`
	Aliases     []string          `json:"aliases,omitempty"`
	Examples    string            `json:"examples,omitempty"`
	Flags       []FlagMetadata    `json:"flags,omitempty"`
	Subcommands []CommandMetadata `json:"subcommands,omitempty"`
}

type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// ExitCode documents a process exit status.
type ExitCode struct {
	Code    int    `json:"code"`
	Meaning string `json:"meaning"`
}

// exitCodes lists every status tally exits with.
var exitCodes = []ExitCode{
	{shared.ExitSuccess, "success"},
	{shared.ExitTestsFailed, "at least one result failed or broke"},
	{shared.ExitUsage, "invalid flags, filter or query"},
	{shared.ExitNoResults, "no results found"},
	{shared.ExitConfig, "configuration could not be loaded"},
}

// HelpResponse is written by help --json. Exactly one of Commands and
// Target is set.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Target      *CommandMetadata  `json:"target,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
	ExitCodes   []ExitCode        `json:"exit_codes"`
}

// NewHelpCommand replaces cobra's help command. With --json it describes
// the command tree for scripts and editors.
func NewHelpCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command...]",
		Short: "Help about any command",
		Long: `Show help for tally or for one of its commands.

Nested commands are named in full, e.g. "tally help history flaky".
With --json the command tree, global flags and exit codes are written as
JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := root
			if len(args) > 0 {
				found, rest, err := root.Find(args)
				if err != nil || found == root || len(rest) > 0 {
					return shared.NewUsageError(fmt.Sprintf("unknown command %q", args[len(args)-1]), nil)
				}
				target = found
			}

			if !shared.GetJSON() {
				return target.Help()
			}
			return writeHelpJSON(cmd, root, target)
		},
	}
}

func writeHelpJSON(cmd, root, target *cobra.Command) error {
	resp := HelpResponse{
		JSONResponse: shared.NewResponse("help", true),
		GlobalFlags:  describeFlags(root.PersistentFlags()),
		ExitCodes:    exitCodes,
	}

	if target == root {
		resp.Commands = describeChildren(root)
	} else {
		md := describe(target)
		resp.Target = &md
		resp.JSONResponse.Command = "help " + md.Path
	}

	return shared.EmitJSON(cmd.OutOrStdout(), resp)
}

// describe builds metadata for cmd. Path omits the root command's name.
func describe(cmd *cobra.Command) CommandMetadata {
	path := cmd.Name()
	for p := cmd.Parent(); p != nil && p.HasParent(); p = p.Parent() {
		path = p.Name() + " " + path
	}

	return CommandMetadata{
		Name:        cmd.Name(),
		Path:        path,
		Group:       cmd.Annotations["group"],
		Short:       cmd.Short,
		Long:        cmd.Long,
		Usage:       cmd.UseLine(),
		Aliases:     cmd.Aliases,
		Examples:    cmd.Example,
		Flags:       describeFlags(cmd.LocalNonPersistentFlags()),
		Subcommands: describeChildren(cmd),
	}
}

func describeChildren(cmd *cobra.Command) []CommandMetadata {
	var out []CommandMetadata
	for _, c := range cmd.Commands() {
		if c.Hidden || c.Name() == "help" {
			continue
		}
		out = append(out, describe(c))
	}
	return out
}

func describeFlags(fs *pflag.FlagSet) []FlagMetadata {
	var out []FlagMetadata
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		out = append(out, FlagMetadata{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return out
}
