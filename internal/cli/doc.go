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
// Package cli assembles the tally command line.
//
// NewRootCommand returns the bare root with the persistent flags every
// command shares (--verbose, --quiet, --json, --no-color, --config).
// cmd/tally attaches the report, history, watch and version commands from
// internal/commands and installs NewHelpCommand, whose --json mode
// describes the whole command tree for scripts.
//
// Commands return errors carrying an exit code; HandleExitError prints them
// and exits with 0 (success), 1 (failed or broken tests), 2 (usage),
// 3 (no results) or 4 (configuration).
package cli
