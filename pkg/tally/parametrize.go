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
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// ParamOption configures Parametrize.
type ParamOption func(*paramOptions)

type paramOptions struct {
	ids         []string
	title       string
	testOptions []TestOption
}

// IDs sets one id per value. Ids name the subtests and are recorded as the
// case_id label.
func IDs(ids ...string) ParamOption {
	return func(o *paramOptions) {
		o.ids = ids
	}
}

// WithTitle sets the title of every invocation. {argname} placeholders are
// replaced with the invocation's argument.
func WithTitle(title string) ParamOption {
	return func(o *paramOptions) {
		o.title = title
	}
}

// WithTestOptions applies opts to every invocation's record.
func WithTestOptions(opts ...TestOption) ParamOption {
	return func(o *paramOptions) {
		o.testOptions = append(o.testOptions, opts...)
	}
}

// Parametrize runs body once per value, in order, each in its own subtest.
//
// argnames is a comma-separated list of argument names. A single name takes
// the whole value. Several names take the value's exported struct fields in
// declaration order, or its slice or array elements. Each argument is
// recorded as a report parameter.
//
// A count mismatch between names and arguments, or between ids and values,
// fails t.
func Parametrize[T any](t *testing.T, argnames string, values []T, body func(*testing.T, T), opts ...ParamOption) {
	t.Helper()

	var o paramOptions
	for _, opt := range opts {
		opt(&o)
	}

	names, cases, err := expandCases(argnames, values, o.ids)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}

	for i, c := range cases {
		value := values[i]
		t.Run(c.id, func(t *testing.T) {
			rec := Begin(t, o.testOptions...)
			rec.Label(labelCaseID, c.id)
			for j, name := range names {
				rec.Parameter(name, c.args[j])
			}
			if o.title != "" {
				rec.Title(o.title)
			}
			body(t, value)
		})
	}
}

// paramCase is one expanded invocation.
type paramCase struct {
	id   string
	args []any
}

// expandCases splits argnames, decomposes every value into arguments and
// assigns ids.
func expandCases[T any](argnames string, values []T, ids []string) ([]string, []paramCase, error) {
	names := splitArgNames(argnames)
	if len(names) == 0 {
		return nil, nil, &tallyerrors.ValidationError{
			Field:          "argnames",
			Message:        "at least one argument name is required",
			SuggestionText: `Pass a comma-separated list such as "system_version, environment_name"`,
		}
	}
	if ids != nil && len(ids) != len(values) {
		return nil, nil, &tallyerrors.ValidationError{
			Field:          "ids",
			Message:        fmt.Sprintf("got %d ids for %d values", len(ids), len(values)),
			SuggestionText: "Pass exactly one id per value",
		}
	}

	cases := make([]paramCase, len(values))
	for i, v := range values {
		args, err := decompose(v, len(names))
		if err != nil {
			return nil, nil, &tallyerrors.ValidationError{
				Field:   fmt.Sprintf("values[%d]", i),
				Message: fmt.Sprintf("%v for argnames %q", err, argnames),
			}
		}
		cases[i].args = args
	}

	if ids != nil {
		for i := range cases {
			cases[i].id = ids[i]
		}
		return names, cases, nil
	}

	for i := range cases {
		cases[i].id = defaultID(names, cases[i].args, i)
	}
	uniquifyIDs(cases)
	return names, cases, nil
}

func splitArgNames(argnames string) []string {
	var names []string
	for _, n := range strings.Split(argnames, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// decompose splits value into n arguments.
func decompose(value any, n int) ([]any, error) {
	if n == 1 {
		return []any{value}, nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot decompose nil into %d arguments", n)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		args := make([]any, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			args = append(args, rv.Field(i).Interface())
		}
		if len(args) != n {
			return nil, fmt.Errorf("%s has %d exported fields, want %d", rv.Type(), len(args), n)
		}
		return args, nil

	case reflect.Slice, reflect.Array:
		if rv.Len() != n {
			return nil, fmt.Errorf("value has %d elements, want %d", rv.Len(), n)
		}
		args := make([]any, n)
		for i := range args {
			args[i] = rv.Index(i).Interface()
		}
		return args, nil

	default:
		return nil, fmt.Errorf("cannot decompose %T into %d arguments", value, n)
	}
}

// defaultID joins one part per argument with "-". Strings, bools and numbers
// render as their value. Anything else, and the empty string, renders as
// <argname><index>.
func defaultID(names []string, args []any, index int) string {
	parts := make([]string, len(args))
	for j, arg := range args {
		parts[j] = idPart(names[j], arg, index)
	}
	return strings.Join(parts, "-")
}

func idPart(name string, arg any, index int) string {
	fallback := name + strconv.Itoa(index)

	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.String:
		if rv.Len() == 0 {
			return fallback
		}
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	default:
		return fallback
	}
}

// uniquifyIDs appends the value index to every id that occurs more than
// once. When that collides with another id the suffix is bumped until the id
// is unique across all cases.
func uniquifyIDs(cases []paramCase) {
	counts := make(map[string]int, len(cases))
	for _, c := range cases {
		counts[c.id]++
	}

	taken := make(map[string]bool, len(cases))
	for _, c := range cases {
		if counts[c.id] == 1 {
			taken[c.id] = true
		}
	}

	for i := range cases {
		base := cases[i].id
		if counts[base] == 1 {
			continue
		}
		n := i
		id := base + strconv.Itoa(n)
		for taken[id] {
			n++
			id = base + strconv.Itoa(n)
		}
		taken[id] = true
		cases[i].id = id
	}
}
