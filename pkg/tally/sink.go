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
	"os"
	"path/filepath"
	"sync"

	tallyerrors "github.com/tombee/tally/pkg/errors"
	"github.com/tombee/tally/pkg/result"
)

// Sink receives finished records. Implementations must be safe for
// concurrent use, since parallel tests finish concurrently.
type Sink interface {
	WriteResult(ctx context.Context, r *result.Result) error
	WriteContainer(ctx context.Context, c *result.Container) error
	WriteAttachment(ctx context.Context, source string, data []byte) error
	Close() error
}

// DirSink writes records into a results directory.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink writing into dir. The directory is created on
// first write.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, &tallyerrors.ValidationError{
			Field:          "results_dir",
			Message:        "results directory is required",
			SuggestionText: "Set TALLY_RESULTS_DIR or results_dir in tally.yaml",
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results directory: %w", err)
	}
	return &DirSink{dir: abs}, nil
}

// Dir returns the absolute results directory.
func (s *DirSink) Dir() string {
	return s.dir
}

// Clean removes result, container and attachment files left by an earlier
// run. Other files are kept.
func (s *DirSink) Clean() error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &tallyerrors.SinkError{Sink: "dir", Op: "clean", Cause: err}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !result.IsResultFile(name) && !result.IsContainerFile(name) && !result.IsAttachmentFile(name) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &tallyerrors.SinkError{Sink: "dir", Op: "clean", Cause: err}
		}
	}
	return nil
}

// WriteResult implements Sink.
func (s *DirSink) WriteResult(_ context.Context, r *result.Result) error {
	if err := result.WriteResult(s.dir, r); err != nil {
		return &tallyerrors.SinkError{Sink: "dir", Op: "write result", Cause: err}
	}
	return nil
}

// WriteContainer implements Sink.
func (s *DirSink) WriteContainer(_ context.Context, c *result.Container) error {
	if err := result.WriteContainer(s.dir, c); err != nil {
		return &tallyerrors.SinkError{Sink: "dir", Op: "write container", Cause: err}
	}
	return nil
}

// WriteAttachment implements Sink.
func (s *DirSink) WriteAttachment(_ context.Context, source string, data []byte) error {
	if err := result.WriteAttachment(s.dir, source, data); err != nil {
		return &tallyerrors.SinkError{Sink: "dir", Op: "write attachment", Cause: err}
	}
	return nil
}

// Close implements Sink.
func (s *DirSink) Close() error {
	return nil
}

// MemorySink keeps copies of every record in memory.
type MemorySink struct {
	mu          sync.RWMutex
	results     []*result.Result
	containers  []*result.Container
	attachments map[string][]byte
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{attachments: make(map[string][]byte)}
}

// WriteResult implements Sink.
func (s *MemorySink) WriteResult(_ context.Context, r *result.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r.Clone())
	return nil
}

// WriteContainer implements Sink.
func (s *MemorySink) WriteContainer(_ context.Context, c *result.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers = append(s.containers, c.Clone())
	return nil
}

// WriteAttachment implements Sink.
func (s *MemorySink) WriteAttachment(_ context.Context, source string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[source] = append([]byte(nil), data...)
	return nil
}

// Close implements Sink.
func (s *MemorySink) Close() error {
	return nil
}

// Results returns copies of the stored results in write order.
func (s *MemorySink) Results() []*result.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*result.Result, len(s.results))
	for i, r := range s.results {
		out[i] = r.Clone()
	}
	return out
}

// ResultsByName returns the stored results whose report name or full name
// equals name.
func (s *MemorySink) ResultsByName(name string) []*result.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*result.Result
	for _, r := range s.results {
		if r.Name == name || r.FullName == name {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Containers returns copies of the stored containers in write order.
func (s *MemorySink) Containers() []*result.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*result.Container, len(s.containers))
	for i, c := range s.containers {
		out[i] = c.Clone()
	}
	return out
}

// Attachment returns the bytes stored under source.
func (s *MemorySink) Attachment(source string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.attachments[source]
	return data, ok
}

// Reset drops everything stored so far.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.containers = nil
	s.attachments = make(map[string][]byte)
}

// MultiSink writes every record to each of its sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink fans out to sinks in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// WriteResult implements Sink. Every sink is attempted; the first error is
// returned.
func (m *MultiSink) WriteResult(ctx context.Context, r *result.Result) error {
	return m.each(func(s Sink) error { return s.WriteResult(ctx, r) })
}

// WriteContainer implements Sink.
func (m *MultiSink) WriteContainer(ctx context.Context, c *result.Container) error {
	return m.each(func(s Sink) error { return s.WriteContainer(ctx, c) })
}

// WriteAttachment implements Sink.
func (m *MultiSink) WriteAttachment(ctx context.Context, source string, data []byte) error {
	return m.each(func(s Sink) error { return s.WriteAttachment(ctx, source, data) })
}

// Close implements Sink.
func (m *MultiSink) Close() error {
	return m.each(func(s Sink) error { return s.Close() })
}

func (m *MultiSink) each(fn func(Sink) error) error {
	var first error
	for _, s := range m.sinks {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ Sink = (*DirSink)(nil)
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*MultiSink)(nil)
)
