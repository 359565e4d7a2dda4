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

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/pkg/result"
)

// writeResults seeds dir with one passed, one failed and one skipped result.
func writeResults(t *testing.T, dir string) {
	t.Helper()
	rs := []*result.Result{
		{
			UUID: "a", Name: "TestLogin", FullName: "example/TestLogin",
			Status: result.StatusPassed, Start: 1000, Stop: 1250,
			Labels: []result.Label{{Name: "tag", Value: "smoke"}},
			Steps:  []result.Step{{Name: "open page", Status: result.StatusPassed, Start: 1000, Stop: 1100}},
		},
		{
			UUID: "b", Name: "TestLogout", FullName: "example/TestLogout",
			Status: result.StatusFailed, Start: 2000, Stop: 2100,
			StatusDetails: &result.StatusDetails{Message: "expected 200, got 500"},
		},
		{
			UUID: "c", Name: "TestSignup", FullName: "example/TestSignup",
			Status: result.StatusSkipped, Start: 3000, Stop: 3000,
		},
	}
	for _, r := range rs {
		require.NoError(t, result.WriteResult(dir, r))
	}
}

// execute runs cmd under a root carrying the global flags.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TALLY_CONFIG", "")
	t.Setenv("TALLY_RESULTS_DIR", "")
	t.Setenv("ALLURE_RESULTS_DIR", "")

	root := &cobra.Command{Use: "tally", SilenceUsage: true, SilenceErrors: true}
	shared.RegisterGlobalFlags(root.PersistentFlags())
	root.AddCommand(cmd)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewListCommand(), "list", dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TestLogin")
	assert.Contains(t, lines[0], "250ms, 1 steps")
	assert.Contains(t, lines[1], "TestLogout")
	assert.Contains(t, lines[2], "TestSignup")
}

func TestList_Filter(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewListCommand(), "list", dir, "--filter", `status == "failed"`)
	require.NoError(t, err)
	assert.Contains(t, out, "TestLogout")
	assert.NotContains(t, out, "TestLogin")
}

func TestList_JSON(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewListCommand(), "list", dir, "--json", "--filter", `"smoke" in tags`)
	require.NoError(t, err)

	var resp struct {
		Command string      `json:"command"`
		Success bool        `json:"success"`
		Results []ListEntry `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "list", resp.Command)
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ListEntry{
		UUID: "a", Name: "TestLogin", FullName: "example/TestLogin",
		Status: result.StatusPassed, DurationMS: 250, Steps: 1,
	}, resp.Results[0])
}

func TestList_Errors(t *testing.T) {
	t.Run("invalid filter", func(t *testing.T) {
		dir := t.TempDir()
		writeResults(t, dir)
		_, err := execute(t, NewListCommand(), "list", dir, "--filter", "status ==")
		require.Error(t, err)
		assert.Equal(t, shared.ExitUsage, shared.ExitCodeFor(err))
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := execute(t, NewListCommand(), "list", t.TempDir())
		require.Error(t, err)
		assert.Equal(t, shared.ExitNoResults, shared.ExitCodeFor(err))
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := execute(t, NewListCommand(), "list", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Equal(t, shared.ExitNoResults, shared.ExitCodeFor(err))
	})
}

func TestSummary_Human(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewSummaryCommand(), "summary", dir)
	require.Error(t, err)
	assert.Equal(t, shared.ExitTestsFailed, shared.ExitCodeFor(err))

	assert.Contains(t, out, "[PASS] TestLogin")
	assert.Contains(t, out, "[FAIL] TestLogout")
	assert.Contains(t, out, "  Error: expected 200, got 500")
	assert.Contains(t, out, "[SKIP] TestSignup")
	assert.Contains(t, out, "Summary:")
}

func TestSummary_PassingFilterExitsZero(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewSummaryCommand(), "summary", dir, "--filter", `status != "failed"`)
	require.NoError(t, err)
	assert.NotContains(t, out, "TestLogout")
}

func TestSummary_JUnitFile(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)
	file := filepath.Join(t.TempDir(), "junit.xml")

	out, err := execute(t, NewSummaryCommand(), "summary", dir, "--output", "junit", "--output-file", file)
	require.Error(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<testsuite`)
	assert.Contains(t, string(data), `tests="3"`)
	assert.Contains(t, string(data), `type="AssertionError"`)
}

func TestSummary_GlobalJSON(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewSummaryCommand(), "summary", dir, "--json", "--filter", `status == "passed"`)
	require.NoError(t, err)

	var report struct {
		Summary struct {
			Total  int `json:"total"`
			Passed int `json:"passed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Passed)
}

func TestSummary_UnknownOutput(t *testing.T) {
	_, err := execute(t, NewSummaryCommand(), "summary", t.TempDir(), "--output", "yaml")
	require.Error(t, err)
	assert.Equal(t, shared.ExitUsage, shared.ExitCodeFor(err))
}

func TestQuery(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	out, err := execute(t, NewQueryCommand(), "query", `[.[] | select(.status == "failed") | .fullName]`, dir)
	require.NoError(t, err)

	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"example/TestLogout"}, names)
}

func TestQuery_Errors(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir)

	t.Run("parse error", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), "query", "[.[] |", dir)
		require.Error(t, err)
		assert.Equal(t, shared.ExitUsage, shared.ExitCodeFor(err))
	})

	t.Run("missing expression", func(t *testing.T) {
		_, err := execute(t, NewQueryCommand(), "query")
		require.Error(t, err)
	})
}
