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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tallyerrors "github.com/tombee/tally/pkg/errors"
	"github.com/tombee/tally/pkg/result"
)

type environment struct {
	SystemVersion   string
	EnvironmentName string
	internal        int
}

func TestExpandCases(t *testing.T) {
	tests := []struct {
		name     string
		argnames string
		values   []any
		ids      []string
		wantIDs  []string
		wantArgs [][]any
	}{
		{
			name:     "single name takes whole value",
			argnames: "user",
			values:   []any{"alice", "bob"},
			wantIDs:  []string{"alice", "bob"},
			wantArgs: [][]any{{"alice"}, {"bob"}},
		},
		{
			name:     "struct fields in declaration order",
			argnames: "system_version, environment_name",
			values:   []any{environment{"1.0", "prod", 7}, &environment{"2.0", "stage", 0}},
			wantIDs:  []string{"1.0-prod", "2.0-stage"},
			wantArgs: [][]any{{"1.0", "prod"}, {"2.0", "stage"}},
		},
		{
			name:     "slice elements",
			argnames: "a,b",
			values:   []any{[]any{1, true}, [2]any{2.5, false}},
			wantIDs:  []string{"1-true", "2.5-false"},
			wantArgs: [][]any{{1, true}, {2.5, false}},
		},
		{
			name:     "unrenderable values fall back to name and index",
			argnames: "cfg",
			values:   []any{map[string]int{"a": 1}, "", struct{}{}},
			wantIDs:  []string{"cfg0", "cfg1", "cfg2"},
			wantArgs: [][]any{{map[string]int{"a": 1}}, {""}, {struct{}{}}},
		},
		{
			name:     "duplicate default ids get their index",
			argnames: "n",
			values:   []any{1, 1, 2},
			wantIDs:  []string{"10", "11", "2"},
			wantArgs: [][]any{{1}, {1}, {2}},
		},
		{
			name:     "suffixed ids skip ids already in use",
			argnames: "s",
			values:   []any{"x", "x", "x0"},
			wantIDs:  []string{"x1", "x2", "x0"},
			wantArgs: [][]any{{"x"}, {"x"}, {"x0"}},
		},
		{
			name:     "suffixed ids skip each other",
			argnames: "s",
			values:   []any{"a1", "a", "a", "a"},
			wantIDs:  []string{"a1", "a2", "a3", "a4"},
			wantArgs: [][]any{{"a1"}, {"a"}, {"a"}, {"a"}},
		},
		{
			name:     "explicit ids are used verbatim",
			argnames: "n",
			values:   []any{1, 2},
			ids:      []string{"first", "first"},
			wantIDs:  []string{"first", "first"},
			wantArgs: [][]any{{1}, {2}},
		},
		{
			name:     "no values",
			argnames: "n",
			values:   []any{},
			wantIDs:  []string{},
			wantArgs: [][]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cases, err := expandCases(tt.argnames, tt.values, tt.ids)
			require.NoError(t, err)

			ids := make([]string, len(cases))
			args := make([][]any, len(cases))
			for i, c := range cases {
				ids[i] = c.id
				args[i] = c.args
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestExpandCases_Errors(t *testing.T) {
	tests := []struct {
		name     string
		argnames string
		values   []any
		ids      []string
		wantMsg  string
	}{
		{"no names", " , ", []any{1}, nil, "argument name"},
		{"id count mismatch", "n", []any{1, 2}, []string{"a"}, "got 1 ids for 2 values"},
		{"too few fields", "a,b,c", []any{environment{}}, nil, "2 exported fields, want 3"},
		{"slice length", "a,b", []any{[]int{1}}, nil, "1 elements, want 2"},
		{"scalar", "a,b", []any{5}, nil, "cannot decompose int"},
		{"nil pointer", "a,b", []any{(*environment)(nil)}, nil, "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := expandCases(tt.argnames, tt.values, tt.ids)
			require.Error(t, err)

			var verr *tallyerrors.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParametrize(t *testing.T) {
	r, mem := newTestReporter(t)

	var seen []environment
	t.Run("TestParametrized", func(t *testing.T) {
		Parametrize(t, "system_version, environment_name",
			[]environment{{"1.0", "prod", 0}, {"2.0", "stage", 0}},
			func(t *testing.T, env environment) {
				seen = append(seen, env)
				Step(t, "deploy "+env.SystemVersion, func() {})
			},
			IDs("first", "second"),
			WithTitle("Deploy {system_version} to {environment_name}"),
			WithTestOptions(WithReporter(r)),
		)
	})

	assert.Equal(t, []environment{{"1.0", "prod", 0}, {"2.0", "stage", 0}}, seen, "invocations run in order")

	results := mem.Results()
	require.Len(t, results, 2)

	first, second := results[0], results[1]
	assert.Equal(t, "Deploy 1.0 to prod", first.Name)
	assert.Equal(t, "TestParametrize/TestParametrized/first", first.FullName)
	assert.Equal(t, "Deploy 2.0 to stage", second.Name)

	id, _ := first.Label("case_id")
	assert.Equal(t, "first", id)
	id, _ = second.Label("case_id")
	assert.Equal(t, "second", id)

	assert.Equal(t, []result.Parameter{
		{Name: "system_version", Value: "1.0"},
		{Name: "environment_name", Value: "prod"},
	}, first.Parameters)

	require.Len(t, second.Steps, 1)
	assert.Equal(t, "deploy 2.0", second.Steps[0].Name)
	assert.Equal(t, result.StatusPassed, second.Status)
	assert.NotEqual(t, first.HistoryID, second.HistoryID)
}

func TestParametrize_DefaultIDs(t *testing.T) {
	r, mem := newTestReporter(t)

	var names []string
	Parametrize(t, "n", []int{3, 3, 4}, func(t *testing.T, n int) {
		names = append(names, t.Name())
	}, WithTestOptions(WithReporter(r)))

	assert.Equal(t, []string{
		"TestParametrize_DefaultIDs/30",
		"TestParametrize_DefaultIDs/31",
		"TestParametrize_DefaultIDs/4",
	}, names)
	assert.Len(t, mem.Results(), 3)
}
