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
package shared

import "github.com/spf13/pflag"

// globals holds the values of the root command's persistent flags.
type globals struct {
	verbose bool
	quiet   bool
	json    bool
	noColor bool
	config  string
}

var flags globals

// Build-time version information
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterGlobalFlags binds the flags every tally command inherits to fs.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose output")
	fs.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&flags.json, "json", false, "Output in JSON format")
	fs.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	fs.StringVar(&flags.config, "config", "", "Path to config file (default: ./tally.yaml or ~/.config/tally/config.yaml)")
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

func GetVerbose() bool { return flags.verbose }

func GetQuiet() bool { return flags.quiet }

// GetJSON reports whether --json was given.
func GetJSON() bool { return flags.json }

// GetNoColor reports whether --no-color was given.
func GetNoColor() bool { return flags.noColor }

// GetConfigPath returns the --config value, empty when unset.
func GetConfigPath() string { return flags.config }

// ResetFlagsForTest restores every global flag to its zero value.
func ResetFlagsForTest() {
	flags = globals{}
}
