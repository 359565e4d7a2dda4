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
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tombee/tally/pkg/result"
)

// Fixture produces a value for tests that use it, optionally once per
// parameter.
type Fixture[P, V any] struct {
	name        string
	params      []P
	setup       func(*Request[P]) V
	ids         []string
	testOptions []TestOption
}

// FixtureOption configures a Fixture.
type FixtureOption func(*fixtureOptions)

type fixtureOptions struct {
	ids         []string
	testOptions []TestOption
}

// FixtureIDs sets one id per parameter.
func FixtureIDs(ids ...string) FixtureOption {
	return func(o *fixtureOptions) {
		o.ids = ids
	}
}

// FixtureTestOptions applies opts to the record of every test using the
// fixture.
func FixtureTestOptions(opts ...TestOption) FixtureOption {
	return func(o *fixtureOptions) {
		o.testOptions = append(o.testOptions, opts...)
	}
}

// NewFixture declares a fixture. With nil params the fixture has a single
// unparametrized instance.
func NewFixture[P, V any](name string, params []P, setup func(*Request[P]) V, opts ...FixtureOption) *Fixture[P, V] {
	var o fixtureOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Fixture[P, V]{
		name:        name,
		params:      params,
		setup:       setup,
		ids:         o.ids,
		testOptions: o.testOptions,
	}
}

// Name returns the fixture name.
func (f *Fixture[P, V]) Name() string {
	return f.name
}

// Request is passed to a fixture's setup function.
type Request[P any] struct {
	// Param is the current parameter (the zero value for an unparametrized
	// fixture).
	Param P
	// ID is the current parameter's id.
	ID string
	// Index is the current parameter's position, or -1.
	Index int
	// T is the test using the fixture.
	T *testing.T

	test      *Test
	teardowns []func()
}

// Step records a step inside the fixture setup.
func (r *Request[P]) Step(name string, fn func()) {
	r.T.Helper()
	r.test.Step(name, fn)
}

// Cleanup registers a teardown. Teardowns run after the test body in reverse
// order and are recorded as the fixture's after result.
func (r *Request[P]) Cleanup(fn func()) {
	r.teardowns = append(r.teardowns, fn)
}

// Test returns the record of the test using the fixture.
func (r *Request[P]) Test() *Test {
	return r.test
}

// Use runs body with the fixture's value: once per parameter in declared
// order, each in a subtest named by the parameter id, or once in t when the
// fixture has no parameters.
func Use[P, V any](t *testing.T, f *Fixture[P, V], body func(*testing.T, V)) {
	t.Helper()

	if f.params == nil {
		var zero P
		useFixture(t, f, zero, "", -1, body)
		return
	}

	_, cases, err := expandCases(f.name, f.params, f.ids)
	if err != nil {
		t.Fatalf("tally: fixture %s: %v", f.name, err)
	}

	for i, c := range cases {
		param := f.params[i]
		t.Run(c.id, func(t *testing.T) {
			useFixture(t, f, param, c.id, i, body)
		})
	}
}

func useFixture[P, V any](t *testing.T, f *Fixture[P, V], param P, id string, index int, body func(*testing.T, V)) {
	t.Helper()

	rec := Begin(t, f.testOptions...)
	if index >= 0 {
		rec.Label(labelCaseID, id)
		rec.Parameter(f.name, param)
	}

	c := newContainerRecord(f.name, rec)
	req := &Request[P]{Param: param, ID: id, Index: index, T: t, test: rec}

	t.Cleanup(func() {
		defer c.write(rec)
		if len(req.teardowns) == 0 {
			return
		}
		_ = rec.runFrame(f.name, func() error {
			for i := len(req.teardowns) - 1; i >= 0; i-- {
				req.teardowns[i]()
			}
			return nil
		}, c.addAfter)
	})

	var value V
	_ = rec.runFrame(f.name, func() error {
		value = f.setup(req)
		return nil
	}, c.addBefore)

	body(t, value)
}

// containerRecord collects a fixture's before and after results.
type containerRecord struct {
	mu sync.Mutex
	c  result.Container
}

func newContainerRecord(name string, rec *Test) *containerRecord {
	return &containerRecord{c: result.Container{
		UUID:     uuid.NewString(),
		Name:     name,
		Children: []string{rec.UUID()},
		Start:    result.Millis(rec.reporter.now()),
	}}
}

func (c *containerRecord) addBefore(step result.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c.Befores = append(c.c.Befores, step)
}

func (c *containerRecord) addAfter(step result.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c.Afters = append(c.c.Afters, step)
}

func (c *containerRecord) write(rec *Test) {
	c.mu.Lock()
	c.c.Stop = result.Millis(rec.reporter.now())
	snapshot := c.c.Clone()
	c.mu.Unlock()

	rec.reporter.writeContainer(rec.ctx, snapshot)
}
