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

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/pkg/result"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, w *Watcher) *result.Result {
	t.Helper()
	select {
	case r, ok := <-w.Results():
		require.True(t, ok, "results channel closed early")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a result")
		return nil
	}
}

func TestWatcher_EmitsNewResults(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "r1", Name: "first", Status: result.StatusPassed}))

	got := receive(t, w)
	assert.Equal(t, "r1", got.UUID)
	assert.Equal(t, result.StatusPassed, got.Status)

	// Writes to an emitted file do not emit it again.
	path := filepath.Join(dir, "r1"+result.ResultSuffix)
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now()))

	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "r2", Name: "second", Status: result.StatusFailed}))
	got = receive(t, w)
	assert.Equal(t, "r2", got.UUID)
}

func TestWatcher_SkipsUnreadableUntilComplete(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "partial"+result.ResultSuffix)
	require.NoError(t, os.WriteFile(path, []byte(`{"uuid":"partial",`), 0o644))
	require.NoError(t, os.WriteFile(path, []byte(`{"uuid":"partial","name":"done","status":"passed"}`), 0o644))

	got := receive(t, w)
	assert.Equal(t, "done", got.Name)
}

func TestWatcher_Replay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "b", Name: "b"}))
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "a", Name: "a"}))

	w, err := New(dir, nil, WithReplay(), WithBuffer(0))
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Equal(t, "a", receive(t, w).UUID)
	assert.Equal(t, "b", receive(t, w).UUID)
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	w, err := New(filepath.Join(t.TempDir(), "created"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	cancel()

	select {
	case _, ok := <-w.Results():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("results channel not closed after cancel")
	}
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopWhileBlocked(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "a"}))

	w, err := New(dir, nil, WithReplay(), WithBuffer(0))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	// Nobody reads; Stop must still return.
	done := make(chan error, 1)
	go func() { done <- w.Stop() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked")
	}
}
