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

// Package watch follows a results directory and decodes result files as
// they land.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/pkg/result"
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithReplay emits the results already in the directory when Start is
// called, before any new ones.
func WithReplay() Option {
	return func(w *Watcher) {
		w.replay = true
	}
}

// WithBuffer sets the capacity of the results channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n >= 0 {
			w.buffer = n
		}
	}
}

// Watcher emits every result file created in a directory exactly once.
type Watcher struct {
	dir     string
	replay  bool
	buffer  int
	watcher *fsnotify.Watcher
	results chan *result.Result
	logger  *slog.Logger

	// seen holds paths already emitted. Only successfully decoded files are
	// recorded, so a file caught half-written is retried on its next event.
	seen map[string]bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a watcher for dir, creating the directory if needed.
func New(dir string, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = log.Discard()
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(absDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch path: %w", err)
	}

	w := &Watcher{
		dir:     absDir,
		buffer:  64,
		watcher: fsw,
		logger:  log.WithComponent(logger, "watch").With(slog.String(log.PathKey, absDir)),
		seen:    make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.results = make(chan *result.Result, w.buffer)

	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Results returns the channel results are delivered on. It is closed when
// the watcher stops.
func (w *Watcher) Results() <-chan *result.Result {
	return w.results
}

// Start begins delivering results. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	go w.eventLoop(ctx)
	w.logger.Info("results watcher started")
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Stop must only
// be called after Start.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.results)

	if w.replay && !w.replayExisting(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("results watcher stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("results watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("watcher event channel closed")
				return
			}
			if !w.handleEvent(ctx, event) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("watcher error channel closed")
				return
			}
			w.logger.Error("watcher error", log.Error(err))
		}
	}
}

func (w *Watcher) replayExisting(ctx context.Context) bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to list results directory", log.Error(err))
		return true
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && result.IsResultFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !w.emit(ctx, filepath.Join(w.dir, name)) {
			return false
		}
	}
	return true
}

// handleEvent returns false when the watcher should stop.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return true
	}
	if !result.IsResultFile(event.Name) {
		return true
	}
	return w.emit(ctx, event.Name)
}

// emit decodes path and delivers it. It returns false when the watcher was
// stopped while waiting to deliver.
func (w *Watcher) emit(ctx context.Context, path string) bool {
	if w.seen[path] {
		return true
	}

	r, err := result.ReadResult(path)
	if err != nil {
		w.logger.Debug("skipping unreadable result", log.PathKey, path, log.Error(err))
		return true
	}
	w.seen[path] = true

	select {
	case w.results <- r:
		log.Trace(w.logger, "result received",
			slog.String(log.TestKey, r.FullName),
			slog.String(log.StatusKey, string(r.Status)))
		return true
	case <-ctx.Done():
		return false
	case <-w.stopCh:
		return false
	}
}
