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

package tally

import (
	"context"
	"testing"
	"time"

	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/log"
)

// closeTimeout bounds how long Run waits for sinks and exporters to flush.
const closeTimeout = 10 * time.Second

// Run installs a reporter built from configuration (tally.yaml and TALLY_*
// variables) as the default, runs the tests, and closes the reporter. Use it
// from TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(tally.Run(m))
//	}
//
// Result files are written only when a results directory is configured,
// through results_dir in tally.yaml or TALLY_RESULTS_DIR / ALLURE_RESULTS_DIR.
// Otherwise, and when the configuration cannot be loaded, tests still run and
// records are kept in memory, so a plain go test ./... leaves the source tree
// untouched.
func Run(m *testing.M) int {
	ctx := context.Background()
	logger := log.WithComponent(log.New(log.FromEnv()), "tally")

	cfg, err := config.LoadDefault("")
	if err != nil {
		logger.Warn("failed to load configuration, using defaults", log.Error(err))
		cfg = config.Default()
	}
	if !cfg.ResultsDirConfigured() {
		cfg.ResultsDir = ""
	}

	r, err := FromConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to create reporter, keeping records in memory", log.Error(err))
		return m.Run()
	}

	prev := SetDefault(r)
	defer SetDefault(prev)

	code := m.Run()

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := r.Close(closeCtx); err != nil {
		logger.Warn("failed to close reporter", log.Error(err))
	}

	return code
}
