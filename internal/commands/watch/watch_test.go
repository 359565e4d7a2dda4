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
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/pkg/result"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func passed(uuid, name string) *result.Result {
	return &result.Result{
		UUID: uuid, Name: name, FullName: "example/" + name,
		Status: result.StatusPassed, Start: 1000, Stop: 1500,
		Steps: []result.Step{{Name: "step", Status: result.StatusPassed}},
	}
}

func TestRun_ReplayCount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, result.WriteResult(dir, passed("a", "TestA")))
	failed := passed("b", "TestB")
	failed.Status = result.StatusFailed
	failed.StatusDetails = &result.StatusDetails{Message: "boom\nstack"}
	require.NoError(t, result.WriteResult(dir, failed))

	var out bytes.Buffer
	err := run(t.Context(), &out, log.Discard(), dir, options{replay: true, count: 2})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "TestA (500ms)")
	assert.Contains(t, out.String(), "TestB (500ms)")
	assert.Contains(t, out.String(), "  boom\n")
	assert.NotContains(t, out.String(), "stack")
	assert.Contains(t, out.String(), "Summary: 2 results (1 passed, 1 failed, 0 broken, 0 skipped)")
}

func TestRun_NewFile(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- run(t.Context(), &out, log.Discard(), dir, options{replay: true, count: 1})
	}()

	require.NoError(t, result.WriteResult(dir, passed("late", "TestLate")))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not pick up the new result")
	}
	assert.Contains(t, out.String(), "TestLate")
	assert.Contains(t, out.String(), "Summary: 1 results")
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var out bytes.Buffer
	err := run(ctx, &out, log.Discard(), t.TempDir(), options{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Summary: 0 results")
}

func TestMetricsServer_Handler(t *testing.T) {
	ms, err := newMetricsServer(log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { ms.provider.Shutdown(context.Background()) })

	ms.provider.Collector().RecordResult(t.Context(), passed("a", "TestA"))

	rec := httptest.NewRecorder()
	ms.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tally_results_total")
	assert.Contains(t, body, "tally_steps_total")
	assert.Contains(t, body, `status="passed"`)
}

func TestStartMetricsServer(t *testing.T) {
	ms, err := startMetricsServer("127.0.0.1:0", log.Discard())
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ms.addr + "/metrics")
	require.NoError(t, err)
	_, err = io.Copy(io.Discard, resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ms.shutdown(log.Discard())
}

func TestStartMetricsServer_BadAddress(t *testing.T) {
	_, err := startMetricsServer("not-an-address", log.Discard())
	require.Error(t, err)
	assert.Equal(t, shared.ExitUsage, shared.ExitCodeFor(err))
}

func TestCommand(t *testing.T) {
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TALLY_CONFIG", "")

	dir := t.TempDir()
	require.NoError(t, result.WriteResult(dir, passed("a", "TestA")))

	root := &cobra.Command{Use: "tally", SilenceUsage: true, SilenceErrors: true}
	shared.RegisterGlobalFlags(root.PersistentFlags())
	root.AddCommand(NewCommand())

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"watch", dir, "--replay", "--count", "1", "--quiet"})
	require.NoError(t, root.ExecuteContext(t.Context()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "TestA")
	assert.True(t, strings.HasPrefix(lines[1], "Summary: 1 results"))
}
