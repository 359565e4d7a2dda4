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

package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/tally/internal/config"
	pkgerrors "github.com/tombee/tally/pkg/errors"
	"github.com/tombee/tally/pkg/result"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"tests failed", NewTestsFailedError(1, 0), ExitTestsFailed},
		{"wrapped exit error", fmt.Errorf("ctx: %w", NewUsageError("bad", nil)), ExitUsage},
		{"not found", &pkgerrors.NotFoundError{Resource: "results", ID: "dir"}, ExitNoResults},
		{"validation", &pkgerrors.ValidationError{Field: "x", Message: "bad"}, ExitUsage},
		{"config", &pkgerrors.ConfigError{Key: "k", Reason: "r"}, ExitConfig},
		{"plain", errors.New("boom"), ExitTestsFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestErrorCodeFor(t *testing.T) {
	assert.Equal(t, ErrorCodeTestsFailed, ErrorCodeFor(NewTestsFailedError(0, 1)))
	assert.Equal(t, ErrorCodeInternal, ErrorCodeFor(errors.New("boom")))
	assert.Equal(t, ErrorCodeNoResults, ErrorCodeFor(&pkgerrors.NotFoundError{}))
	assert.Equal(t, ErrorCodeInvalidConfig, ErrorCodeFor(NewConfigError("x", nil)))
	assert.Empty(t, ErrorCodeFor(nil))
}

func TestHandleExitError(t *testing.T) {
	code := -1
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = os.Exit })

	HandleExitError(nil)
	assert.Equal(t, -1, code, "nil errors do not exit")

	HandleExitError(NewNoResultsError("nothing", nil))
	assert.Equal(t, ExitNoResults, code)
}

func TestWriteExitError(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("load: %w", &pkgerrors.NotFoundError{Resource: "results", ID: "out"})

	code := writeExitError(&buf, err)

	assert.Equal(t, ExitNoResults, code)
	assert.Contains(t, buf.String(), "Error: load: results not found: out")
	assert.Contains(t, buf.String(), "Suggestion: run the tests with TALLY_RESULTS_DIR set")
}

func TestEmitJSONError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitJSONError(&buf, "summary", &pkgerrors.NotFoundError{Resource: "results", ID: "out"}))

	var got struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, NewResponse("summary", false), got.JSONResponse)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, ErrorCodeNoResults, got.Errors[0].Code)
	assert.NotEmpty(t, got.Errors[0].Suggestion)
}

func TestStyler_Plain(t *testing.T) {
	var buf bytes.Buffer
	s := NewStyler(&buf)

	assert.Equal(t, SymbolOK, s.Status(result.StatusPassed))
	assert.Equal(t, SymbolError, s.Status(result.StatusFailed))
	assert.Equal(t, SymbolBroken, s.Status(result.StatusBroken))
	assert.Equal(t, SymbolWarn, s.Status(result.StatusSkipped))
	assert.Equal(t, SymbolError+" oops", s.RenderError("oops"))
	assert.Equal(t, "label", s.RenderLabel("label"))
}

func TestRegisterGlobalFlags(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)

	fs := pflag.NewFlagSet("tally", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	for _, name := range []string{"verbose", "quiet", "json", "no-color", "config"} {
		assert.NotNil(t, fs.Lookup(name), name)
	}

	require.NoError(t, fs.Parse([]string{"-v", "--json", "--no-color"}))
	assert.True(t, GetVerbose())
	assert.True(t, GetJSON())
	assert.True(t, GetNoColor())
	assert.False(t, GetQuiet())

	ResetFlagsForTest()
	assert.False(t, GetVerbose() || GetJSON() || GetNoColor())
}

func TestColorEnabled(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)

	fs := pflag.NewFlagSet("tally", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	require.NoError(t, fs.Parse([]string{"--no-color"}))
	assert.False(t, ColorEnabled(os.Stdout))
	ResetFlagsForTest()

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled(os.Stdout))

	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "dumb")
	assert.False(t, ColorEnabled(os.Stdout))

	t.Setenv("TERM", "xterm-256color")
	assert.False(t, ColorEnabled(&bytes.Buffer{}))
}

func TestLoadResults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "a", Name: "a", Status: result.StatusPassed}))
	require.NoError(t, result.WriteResult(dir, &result.Result{UUID: "b", Name: "b", Status: result.StatusFailed}))

	cfg := config.Default()
	cfg.ResultsDir = dir

	rs, err := LoadResults(cfg, nil, `status == "failed"`)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "b", rs[0].UUID)

	_, err = LoadResults(cfg, nil, `status ==`)
	assert.Equal(t, ExitUsage, ExitCodeFor(err))

	_, err = LoadResults(cfg, []string{filepath.Join(dir, "missing")}, "")
	assert.Equal(t, ExitNoResults, ExitCodeFor(err))
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(ResetFlagsForTest)
	t.Setenv("TALLY_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "tally.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: nope\n"), 0o644))

	fs := pflag.NewFlagSet("tally", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "-q"}))
	assert.True(t, GetQuiet())
	assert.Equal(t, path, GetConfigPath())

	_, err := LoadConfig()
	assert.Equal(t, ExitConfig, ExitCodeFor(err))
}
