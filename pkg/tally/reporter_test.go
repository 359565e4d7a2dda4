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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/history"
	"github.com/tombee/tally/pkg/result"
)

func TestNew_Options(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil sink", WithSink(nil)},
		{"nil tracer provider", WithTracerProvider(nil)},
		{"nil logger", WithLogger(nil)},
		{"nil clock", WithClock(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorContains(t, err, "apply option")
		})
	}
}

func TestNew_Sinks(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.IsType(t, &MemorySink{}, r.Sink())

	mem := NewMemorySink()
	r, err = New(WithSink(mem))
	require.NoError(t, err)
	assert.Same(t, mem, r.Sink())

	r, err = New(WithSink(mem), WithSink(NewMemorySink()))
	require.NoError(t, err)
	assert.IsType(t, &MultiSink{}, r.Sink())

	r, err = New(WithLabels(map[string]string{"b": "2", "a": "1"}))
	require.NoError(t, err)
	assert.Equal(t, []result.Label{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}, r.labels)
}

func TestReporter_Close(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	calls := 0
	errClose := errors.New("close failed")
	r.closers = append(r.closers, func(context.Context) error {
		calls++
		return errClose
	})

	assert.ErrorIs(t, r.Close(context.Background()), errClose)
	assert.NoError(t, r.Close(context.Background()), "second close is a no-op")
	assert.Equal(t, 1, calls)
}

func TestReporter_SinkErrorsDoNotFailTests(t *testing.T) {
	r, _ := newTestReporter(t, WithSink(failingSink{MemorySink: NewMemorySink(), err: errors.New("disk full")}))
	ft := newFakeT("TestSinkError")

	ft.run(func() {
		Begin(ft, WithReporter(r)).Step("step", func() {})
	})

	assert.False(t, ft.Failed())
}

func TestFromConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.ResultsDir = filepath.Join(base, "results")
	cfg.Clean = true
	cfg.Log.Level = "error"
	cfg.Labels = map[string]string{"env": "ci"}
	cfg.History = config.HistoryConfig{Enabled: true, Path: filepath.Join(base, "history.db")}

	require.NoError(t, os.MkdirAll(cfg.ResultsDir, 0o755))
	stale := filepath.Join(cfg.ResultsDir, "old"+result.ResultSuffix)
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0o644))

	r, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "clean removes previous results")

	ft := newFakeT("TestFromConfig")
	ft.run(func() {
		rec := Begin(ft, WithReporter(r))
		rec.Step("step", func() {})
	})
	require.NoError(t, r.Close(context.Background()))

	entries, err := os.ReadDir(cfg.ResultsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	res, err := result.ReadResult(filepath.Join(cfg.ResultsDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "TestFromConfig", res.FullName)
	assert.Contains(t, res.Labels, result.Label{Name: "env", Value: "ci"})

	store, err := history.Open(history.Config{Path: cfg.History.Path})
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.History(context.Background(), res.HistoryID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.UUID, runs[0].UUID)
}

func TestFromConfig_NoResultsDirKeepsRecordsInMemory(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := config.Default()
	cfg.ResultsDir = ""
	cfg.Log.Level = "error"

	r, err := FromConfig(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	mem, ok := r.Sink().(*MemorySink)
	require.True(t, ok, "sink is %T", r.Sink())

	ft := newFakeT("TestInMemory")
	ft.run(func() { Begin(ft, WithReporter(r)) })
	require.Len(t, mem.Results(), 1)

	entries, err := os.ReadDir(".")
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written to the working directory")
}

func TestFromConfig_UnusableResultsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	cfg := config.Default()
	cfg.ResultsDir = filepath.Join(file, "results")
	cfg.Clean = true

	_, err := FromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestDefaultReporter(t *testing.T) {
	prev := SetDefault(nil)
	t.Cleanup(func() { SetDefault(prev) })

	d := Default()
	require.NotNil(t, d)
	assert.Same(t, d, Default(), "the lazily created reporter is reused")
	assert.IsType(t, &MemorySink{}, d.Sink())

	custom, mem := newTestReporter(t)
	assert.Same(t, d, SetDefault(custom))
	assert.Same(t, custom, Default())

	ft := newFakeT("TestDefaultReporter")
	ft.run(func() {
		Step(ft, "uses default", func() {})
	})
	assert.Len(t, mem.ResultsByName("TestDefaultReporter"), 1)
}
