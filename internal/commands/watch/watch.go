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

// Package watch implements the watch command, which follows a results
// directory while tests run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/results"
	"github.com/tombee/tally/internal/tracing"
	resultwatch "github.com/tombee/tally/internal/watch"
	"github.com/tombee/tally/pkg/result"
)

type options struct {
	metricsAddr string
	replay      bool
	count       int
}

// NewCommand creates the watch command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Print results as tests write them",
		Long: `Watch follows a results directory and prints each result as soon as its file
is written. With --metrics-addr it also serves Prometheus metrics for the
results seen (tally_results_total, tally_steps_total and
tally_result_duration_seconds) on /metrics.

Watch runs until interrupted, or until --count results were printed.`,
		Example: `  # Example 1: Follow the configured results directory
  tally watch

  # Example 2: Print existing results first, then follow
  tally watch out/allure-results --replay

  # Example 3: Serve metrics for a dashboard
  tally watch --metrics-addr :9464`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := shared.LoadConfig()
			if err != nil {
				return err
			}
			dir := cfg.ResultsDir
			if len(args) == 1 {
				dir = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := shared.NewLogger(cfg, cmd.ErrOrStderr())
			return run(ctx, cmd.OutOrStdout(), logger, dir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().BoolVar(&opts.replay, "replay", false, "Print results already in the directory first")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Exit after this many results (0 runs until interrupted)")

	return cmd
}

func run(ctx context.Context, out io.Writer, logger *slog.Logger, dir string, opts options) error {
	var metrics *metricsServer
	if opts.metricsAddr != "" {
		var err error
		metrics, err = startMetricsServer(opts.metricsAddr, logger)
		if err != nil {
			return err
		}
		defer metrics.shutdown(logger)
	}

	var watchOpts []resultwatch.Option
	if opts.replay {
		watchOpts = append(watchOpts, resultwatch.WithReplay())
	}
	w, err := resultwatch.New(dir, logger, watchOpts...)
	if err != nil {
		return err
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	styler := shared.NewStyler(out)
	if !shared.GetQuiet() {
		fmt.Fprintln(out, styler.RenderLabel("Watching "+w.Dir()))
	}

	var seen []*result.Result
	for r := range w.Results() {
		seen = append(seen, r)
		if metrics != nil {
			metrics.provider.Collector().RecordResult(ctx, r)
		}
		fmt.Fprintf(out, "%s %s (%s)\n", styler.Status(r.Status), r.Name, r.Duration())
		if r.Status.IsFailure() && r.StatusDetails != nil && r.StatusDetails.Message != "" {
			msg, _, _ := strings.Cut(r.StatusDetails.Message, "\n")
			fmt.Fprintf(out, "  %s\n", styler.Render(shared.StatusError, msg))
		}
		if opts.count > 0 && len(seen) >= opts.count {
			break
		}
	}

	s := results.Summarize(seen)
	fmt.Fprintf(out, "Summary: %d results (%d passed, %d failed, %d broken, %d skipped)\n",
		s.Total, s.Passed, s.Failed, s.Broken, s.Skipped)
	return nil
}

type metricsServer struct {
	provider *tracing.MetricsProvider
	server   *http.Server
	addr     string
}

// newMetricsServer builds the /metrics handler on a private registry.
func newMetricsServer(logger *slog.Logger) (*metricsServer, error) {
	mp, err := tracing.NewMetricsProvider("tally", prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", mp.Handler())

	return &metricsServer{
		provider: mp,
		server: &http.Server{
			Handler:           log.HTTPMiddleware(logger, mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func startMetricsServer(addr string, logger *slog.Logger) (*metricsServer, error) {
	ms, err := newMetricsServer(logger)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		ms.provider.Shutdown(context.Background())
		return nil, shared.NewUsageError(fmt.Sprintf("cannot listen on %s", addr), err)
	}
	ms.addr = ln.Addr().String()

	go func() {
		if err := ms.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Error(err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ms.addr))
	return ms, nil
}

func (ms *metricsServer) shutdown(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ms.server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", log.Error(err))
	}
	if err := ms.provider.Shutdown(ctx); err != nil {
		logger.Warn("meter provider shutdown failed", log.Error(err))
	}
}
