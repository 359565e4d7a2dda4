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

package results

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tombee/tally/pkg/result"
)

// Filter selects results with expr-lang boolean expressions such as
//
//	status == "failed" && duration > 500
//	labels.feature == "login" || "smoke" in tags
//
// Expressions see these variables:
//
//	name      report name
//	fullName  test path (TestX/case)
//	status    passed, failed, broken, skipped or unknown
//	duration  milliseconds
//	params    parameter name to display value
//	labels    label name to value (last one wins)
//	tags      every "tag" label value
//	steps     number of steps at any depth
//
// Compiled programs are cached, so a Filter can be reused across calls.
type Filter struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewFilter creates a Filter with an empty program cache.
func NewFilter() *Filter {
	return &Filter{cache: make(map[string]*vm.Program)}
}

// Match reports whether r satisfies expression. An empty expression matches
// everything.
func (f *Filter) Match(expression string, r *result.Result) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := f.compile(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, env(r))
	if err != nil {
		return false, fmt.Errorf("filter evaluation failed: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter must return boolean, got %T (%v)", out, out)
	}
	return matched, nil
}

// Apply returns the results that satisfy expression, in order.
func (f *Filter) Apply(expression string, rs []*result.Result) ([]*result.Result, error) {
	if expression == "" {
		return rs, nil
	}

	out := make([]*result.Result, 0, len(rs))
	for _, r := range rs {
		ok, err := f.Match(expression, r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.FullName, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Validate compiles expression without running it.
func (f *Filter) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := f.compile(expression)
	return err
}

func (f *Filter) compile(expression string) (*vm.Program, error) {
	f.mu.RLock()
	if prog, ok := f.cache[expression]; ok {
		f.mu.RUnlock()
		return prog, nil
	}
	f.mu.RUnlock()

	prog, err := expr.Compile(expression,
		expr.Env(env(&result.Result{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expression, err)
	}

	f.mu.Lock()
	f.cache[expression] = prog
	f.mu.Unlock()

	return prog, nil
}

func env(r *result.Result) map[string]any {
	var tags []string
	for _, l := range r.Labels {
		if l.Name == "tag" {
			tags = append(tags, l.Value)
		}
	}
	if tags == nil {
		tags = []string{}
	}

	return map[string]any{
		"name":     r.Name,
		"fullName": r.FullName,
		"status":   string(r.Status),
		"duration": r.Duration().Milliseconds(),
		"params":   r.ParameterMap(),
		"labels":   r.LabelMap(),
		"tags":     tags,
		"steps":    r.CountSteps(),
	}
}
