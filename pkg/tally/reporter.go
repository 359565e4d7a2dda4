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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/history"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/tombee/tally"

// Reporter turns test annotations into report records and hands finished
// records to its sink. A Reporter is safe for concurrent use by parallel
// tests.
type Reporter struct {
	sinks  []Sink
	sink   Sink
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
	labels []result.Label

	// closers run after the sink is closed (e.g., tracer provider shutdown).
	closers []func(context.Context) error

	closeMu sync.Mutex
	closed  bool
}

// New creates a Reporter with the given options. Without WithSink, records
// are kept in a MemorySink.
//
// Example:
//
//	mem := tally.NewMemorySink()
//	r, err := tally.New(tally.WithSink(mem))
//	if err != nil {
//		return err
//	}
//	defer r.Close(ctx)
func New(opts ...Option) (*Reporter, error) {
	r := &Reporter{
		tracer: noop.NewTracerProvider().Tracer(instrumentationName),
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	switch len(r.sinks) {
	case 0:
		r.sink = NewMemorySink()
	case 1:
		r.sink = r.sinks[0]
	default:
		r.sink = NewMultiSink(r.sinks...)
	}
	r.logger = log.WithComponent(r.logger, "tally")

	return r, nil
}

// FromConfig builds a Reporter from configuration: a results directory sink
// (an in-memory sink when ResultsDir is empty), the sqlite history when
// enabled, and tracing when enabled.
func FromConfig(ctx context.Context, cfg *config.Config) (*Reporter, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	})

	var records Sink = NewMemorySink()
	if cfg.ResultsDir != "" {
		dir, err := NewDirSink(cfg.ResultsDir)
		if err != nil {
			return nil, err
		}
		if cfg.Clean {
			if err := dir.Clean(); err != nil {
				return nil, err
			}
		}
		records = dir
	}

	opts := []Option{
		WithSink(records),
		WithLogger(logger),
		WithLabels(defaultLabels(cfg.Labels)),
	}

	var closers []func(context.Context) error
	cleanup := func() {
		for _, c := range closers {
			_ = c(ctx)
		}
	}

	if cfg.History.Enabled {
		store, err := history.Open(history.Config{Path: cfg.History.Path})
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		opts = append(opts, WithSink(store))
		closers = append(closers, func(context.Context) error { return store.Close() })
	}

	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProviderWithLogger(ctx, cfg.Tracing, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
		opts = append(opts, WithTracerProvider(provider.TracerProvider()))
		closers = append(closers, provider.Shutdown)
	}

	r, err := New(opts...)
	if err != nil {
		cleanup()
		return nil, err
	}
	r.closers = closers

	r.logger.Debug("reporter configured",
		log.PathKey, cfg.ResultsDir,
		"history", cfg.History.Enabled,
		"tracing", cfg.Tracing.Enabled)

	return r, nil
}

// defaultLabels adds the host label to the configured labels.
func defaultLabels(configured map[string]string) map[string]string {
	labels := make(map[string]string, len(configured)+1)
	if host, err := os.Hostname(); err == nil {
		labels["host"] = host
	}
	for k, v := range configured {
		labels[k] = v
	}
	return labels
}

// Sink returns the sink records are written to.
func (r *Reporter) Sink() Sink {
	return r.sink
}

// Close flushes and closes the sink and shuts down tracing. Close is
// idempotent.
func (r *Reporter) Close(ctx context.Context) error {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.sink.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range r.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) writeResult(ctx context.Context, res *result.Result) {
	if err := r.sink.WriteResult(ctx, res); err != nil {
		r.logger.Warn("failed to write result",
			log.TestKey, res.FullName,
			log.ResultIDKey, res.UUID,
			log.Error(err))
		return
	}
	r.logger.Debug("result written",
		log.TestKey, res.FullName,
		log.ResultIDKey, res.UUID,
		log.StatusKey, string(res.Status),
		log.DurationKey, res.Duration().Milliseconds())
}

func (r *Reporter) writeContainer(ctx context.Context, c *result.Container) {
	if err := r.sink.WriteContainer(ctx, c); err != nil {
		r.logger.Warn("failed to write container",
			"container", c.Name,
			log.ResultIDKey, c.UUID,
			log.Error(err))
	}
}

func (r *Reporter) writeAttachment(ctx context.Context, source string, data []byte) bool {
	if err := r.sink.WriteAttachment(ctx, source, data); err != nil {
		r.logger.Warn("failed to write attachment",
			"source", source,
			log.Error(err))
		return false
	}
	return true
}

var defaultReporter atomic.Pointer[Reporter]

// Default returns the package-level reporter. Until SetDefault is called it
// is an in-memory reporter, so annotations never fail.
func Default() *Reporter {
	if r := defaultReporter.Load(); r != nil {
		return r
	}
	r, err := New()
	if err != nil {
		panic(fmt.Sprintf("tally: default reporter: %v", err))
	}
	if defaultReporter.CompareAndSwap(nil, r) {
		return r
	}
	return defaultReporter.Load()
}

// SetDefault installs r as the package-level reporter and returns the
// previous one (nil if none was set).
func SetDefault(r *Reporter) *Reporter {
	return defaultReporter.Swap(r)
}
