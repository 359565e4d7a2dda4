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

import (
	"io"
	"log/slog"

	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/results"
	"github.com/tombee/tally/pkg/result"
)

// LoadConfig loads configuration, honouring --config.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadDefault(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// ResultPaths returns args, or the configured results directory when args is
// empty.
func ResultPaths(args []string, cfg *config.Config) []string {
	if len(args) > 0 {
		return args
	}
	return []string{cfg.ResultsDir}
}

// LoadResults loads the results under args (or the configured directory) and
// applies filter.
func LoadResults(cfg *config.Config, args []string, filter string) ([]*result.Result, error) {
	f := results.NewFilter()
	if err := f.Validate(filter); err != nil {
		return nil, NewUsageError("invalid --filter", err)
	}

	rs, err := results.LoadPaths(ResultPaths(args, cfg), "")
	if err != nil {
		return nil, err
	}

	rs, err = f.Apply(filter, rs)
	if err != nil {
		return nil, NewUsageError("filter failed", err)
	}
	return rs, nil
}

// NewLogger builds the CLI logger from configuration and the global
// --verbose and --quiet flags.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Log.Level
	switch {
	case GetVerbose():
		level = "debug"
	case GetQuiet():
		level = "error"
	}
	return log.New(&log.Config{
		Level:     level,
		Format:    log.Format(cfg.Log.Format),
		Output:    w,
		AddSource: cfg.Log.AddSource,
	})
}
