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

// Package result defines the report records written by tally and read back by
// the tally CLI. The JSON layout follows the Allure 2 results format so the
// stock allure commandline can render a report from the same directory.
package result

import (
	"time"
)

// Status is the outcome of a test, step or fixture.
type Status string

const (
	// StatusPassed means the body completed without reporting a failure.
	StatusPassed Status = "passed"
	// StatusFailed means an assertion failed (t.Error, t.Fatal, a returned error).
	StatusFailed Status = "failed"
	// StatusBroken means the body panicked.
	StatusBroken Status = "broken"
	// StatusSkipped means the body called t.Skip.
	StatusSkipped Status = "skipped"
	// StatusUnknown is used for records that were never finalized.
	StatusUnknown Status = "unknown"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusBroken, StatusSkipped, StatusUnknown:
		return true
	}
	return false
}

// IsFailure reports whether s counts against a run.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusBroken
}

// StatusFromString parses a status, returning StatusUnknown for anything else.
func StatusFromString(s string) Status {
	st := Status(s)
	if st.Valid() {
		return st
	}
	return StatusUnknown
}

// Stage is the lifecycle stage of a record.
type Stage string

const (
	StageScheduled   Stage = "scheduled"
	StageRunning     Stage = "running"
	StageFinished    Stage = "finished"
	StagePending     Stage = "pending"
	StageInterrupted Stage = "interrupted"
)

// ParameterMode controls how a parameter value is displayed.
type ParameterMode string

const (
	ParameterModeDefault ParameterMode = "default"
	ParameterModeMasked  ParameterMode = "masked"
	ParameterModeHidden  ParameterMode = "hidden"
)

// Parameter is a named value attached to a test or step.
type Parameter struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Excluded bool          `json:"excluded,omitempty"`
	Mode     ParameterMode `json:"mode,omitempty"`
}

// Label is a name/value pair used for grouping (feature, story, tag, ...).
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Link points at an external resource such as an issue tracker entry.
type Link struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// StatusDetails carries the failure message and stack for non-passing records.
type StatusDetails struct {
	Known   bool   `json:"known,omitempty"`
	Muted   bool   `json:"muted,omitempty"`
	Flaky   bool   `json:"flaky,omitempty"`
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// Attachment references a file written next to the result.
type Attachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type,omitempty"`
}

// Step is a named, timed group of actions inside a test or fixture.
type Step struct {
	Name          string         `json:"name"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         Stage          `json:"stage"`
	Steps         []Step         `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Parameters    []Parameter    `json:"parameters,omitempty"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// Duration returns the time between start and stop.
func (s *Step) Duration() time.Duration {
	return millisBetween(s.Start, s.Stop)
}

// FixtureResult records a fixture setup ("before") or teardown ("after").
type FixtureResult = Step

// Result is the report record of one test invocation.
type Result struct {
	UUID          string         `json:"uuid"`
	HistoryID     string         `json:"historyId"`
	TestCaseID    string         `json:"testCaseId"`
	Name          string         `json:"name"`
	FullName      string         `json:"fullName"`
	Description   string         `json:"description,omitempty"`
	Status        Status         `json:"status"`
	StatusDetails *StatusDetails `json:"statusDetails,omitempty"`
	Stage         Stage          `json:"stage"`
	Steps         []Step         `json:"steps,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Parameters    []Parameter    `json:"parameters,omitempty"`
	Labels        []Label        `json:"labels,omitempty"`
	Links         []Link         `json:"links,omitempty"`
	Start         int64          `json:"start"`
	Stop          int64          `json:"stop"`
}

// Duration returns the time between start and stop.
func (r *Result) Duration() time.Duration {
	return millisBetween(r.Start, r.Stop)
}

// CountSteps returns the number of steps in the record, nested ones included.
func (r *Result) CountSteps() int {
	return countSteps(r.Steps)
}

func countSteps(steps []Step) int {
	n := len(steps)
	for i := range steps {
		n += countSteps(steps[i].Steps)
	}
	return n
}

// Parameter looks up a parameter by name.
func (r *Result) Parameter(name string) (Parameter, bool) {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Label returns the value of the first label with the given name.
func (r *Result) Label(name string) (string, bool) {
	for _, l := range r.Labels {
		if l.Name == name {
			return l.Value, true
		}
	}
	return "", false
}

// ParameterMap returns the parameters keyed by name. Hidden parameters are
// omitted and masked ones are replaced.
func (r *Result) ParameterMap() map[string]string {
	m := make(map[string]string, len(r.Parameters))
	for _, p := range r.Parameters {
		switch p.Mode {
		case ParameterModeHidden:
			continue
		case ParameterModeMasked:
			m[p.Name] = MaskedValue
		default:
			m[p.Name] = p.Value
		}
	}
	return m
}

// LabelMap returns the labels keyed by name. For repeated names the last
// value wins.
func (r *Result) LabelMap() map[string]string {
	m := make(map[string]string, len(r.Labels))
	for _, l := range r.Labels {
		m[l.Name] = l.Value
	}
	return m
}

// MaskedValue replaces masked parameter values in any derived output.
const MaskedValue = "******"

// Container groups fixture results with the tests that used them.
type Container struct {
	UUID     string          `json:"uuid"`
	Name     string          `json:"name,omitempty"`
	Children []string        `json:"children"`
	Befores  []FixtureResult `json:"befores,omitempty"`
	Afters   []FixtureResult `json:"afters,omitempty"`
	Start    int64           `json:"start"`
	Stop     int64           `json:"stop"`
}

// Millis converts t to the epoch-millisecond form used in records.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisBetween(start, stop int64) time.Duration {
	if stop < start {
		return 0
	}
	return time.Duration(stop-start) * time.Millisecond
}

// Clone returns a deep copy of s.
func (s *Step) Clone() Step {
	c := *s
	c.StatusDetails = cloneDetails(s.StatusDetails)
	c.Steps = cloneSteps(s.Steps)
	c.Attachments = cloneSlice(s.Attachments)
	c.Parameters = cloneSlice(s.Parameters)
	return c
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	c := *r
	c.StatusDetails = cloneDetails(r.StatusDetails)
	c.Steps = cloneSteps(r.Steps)
	c.Attachments = cloneSlice(r.Attachments)
	c.Parameters = cloneSlice(r.Parameters)
	c.Labels = cloneSlice(r.Labels)
	c.Links = cloneSlice(r.Links)
	return &c
}

// Clone returns a deep copy of c.
func (c *Container) Clone() *Container {
	out := *c
	out.Children = cloneSlice(c.Children)
	out.Befores = cloneSteps(c.Befores)
	out.Afters = cloneSteps(c.Afters)
	return &out
}

func cloneDetails(d *StatusDetails) *StatusDetails {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = steps[i].Clone()
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
