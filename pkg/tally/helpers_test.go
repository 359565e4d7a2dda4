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
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/internal/log"
)

// fakeT is a TB whose failures do not fail the enclosing go test.
type fakeT struct {
	name string

	mu       sync.Mutex
	failed   bool
	skipped  bool
	cleanups []func()
	logs     []string
}

func newFakeT(name string) *fakeT {
	return &fakeT{name: name}
}

func (f *fakeT) Name() string { return f.name }
func (f *fakeT) Helper()      {}

func (f *fakeT) Cleanup(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, fn)
}

func (f *fakeT) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func (f *fakeT) Skipped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}

func (f *fakeT) Logf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, fmt.Sprintf(format, args...))
}

func (f *fakeT) Context() context.Context { return context.Background() }

func (f *fakeT) Error(args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
}

func (f *fakeT) FailNow() {
	f.Error()
	runtime.Goexit()
}

func (f *fakeT) SkipNow() {
	f.mu.Lock()
	f.skipped = true
	f.mu.Unlock()
	runtime.Goexit()
}

// run executes fn on its own goroutine the way the testing package does, then
// runs cleanups. It returns the value fn panicked with, if any.
func (f *fakeT) run(fn func()) (panicked any) {
	done := make(chan any, 1)
	go func() {
		var p any
		defer func() {
			f.finish()
			done <- p
		}()
		defer func() {
			p = recover()
		}()
		fn()
	}()
	return <-done
}

func (f *fakeT) finish() {
	f.mu.Lock()
	cleanups := f.cleanups
	f.cleanups = nil
	f.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// tickingClock advances one millisecond per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func newTestReporter(t *testing.T, opts ...Option) (*Reporter, *MemorySink) {
	t.Helper()

	mem := NewMemorySink()
	all := append([]Option{
		WithSink(mem),
		WithClock(tickingClock()),
		WithLogger(log.Discard()),
	}, opts...)

	r, err := New(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	return r, mem
}
