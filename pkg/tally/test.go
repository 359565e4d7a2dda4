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
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TB is the subset of testing.TB a record needs. *testing.T and *testing.B
// satisfy it.
type TB interface {
	Name() string
	Helper()
	Cleanup(func())
	Failed() bool
	Skipped() bool
	Logf(format string, args ...any)
	Context() context.Context
}

// Label names written by tally.
const (
	labelCaseID = "case_id"
	labelSuite  = "suite"
)

var (
	// records maps a TB to its open record.
	records sync.Map
	// recordsByName maps a test name to its open record, for span parenting.
	recordsByName sync.Map
)

// Test is the report record of one test invocation. It is created by Begin
// and finalized when the test finishes.
type Test struct {
	t        TB
	reporter *Reporter
	logger   *slog.Logger
	ctx      context.Context
	span     trace.Span

	mu     sync.Mutex
	res    result.Result
	title  string
	frames []*frame
	broken *result.StatusDetails
	done   bool
}

// Begin returns the record for t, creating it on first use. The record is
// written to the reporter's sink from t.Cleanup when the test finishes.
// Options only apply when the record is created.
func Begin(t TB, opts ...TestOption) *Test {
	t.Helper()

	if existing, ok := records.Load(t); ok {
		return existing.(*Test)
	}

	var o testOptions
	for _, opt := range opts {
		opt(&o)
	}
	r := o.reporter
	if r == nil {
		r = Default()
	}

	tt := &Test{
		t:        t,
		reporter: r,
		title:    o.title,
	}
	tt.res = result.Result{
		UUID:        uuid.NewString(),
		Name:        t.Name(),
		FullName:    t.Name(),
		Description: o.description,
		Stage:       result.StageRunning,
		Labels:      append([]result.Label(nil), o.labels...),
		Start:       result.Millis(r.now()),
	}

	if actual, loaded := records.LoadOrStore(t, tt); loaded {
		return actual.(*Test)
	}
	tt.start()
	t.Cleanup(tt.finish)

	return tt
}

func (tt *Test) start() {
	name := tt.t.Name()
	tt.logger = log.WithTestContext(tt.reporter.logger, name, tt.res.UUID)

	// t.Context is canceled before cleanups run, and the record is written
	// from a cleanup.
	ctx := context.WithoutCancel(tt.t.Context())
	if parent := parentRecord(name); parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent.span)
	}

	tt.ctx, tt.span = tt.reporter.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String(tracing.AttrTestName, name),
			attribute.String(tracing.AttrResultUUID, tt.res.UUID),
		),
	)

	recordsByName.Store(name, tt)
	log.Trace(tt.logger, "test started")
}

// parentRecord finds the closest enclosing test that has a record.
func parentRecord(name string) *Test {
	for {
		idx := strings.LastIndex(name, "/")
		if idx < 0 {
			return nil
		}
		name = name[:idx]
		if parent, ok := recordsByName.Load(name); ok {
			return parent.(*Test)
		}
	}
}

// UUID returns the record's uuid.
func (tt *Test) UUID() string {
	return tt.res.UUID
}

// Context returns a context carrying the span of the innermost open step, or
// of the test. Pass it to code under test so its spans join the test trace.
func (tt *Test) Context() context.Context {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if n := len(tt.frames); n > 0 {
		return tt.frames[n-1].ctx
	}
	return tt.ctx
}

// Title sets the report name. {name} placeholders are replaced with the
// value of parameter name when the test finishes.
func (tt *Test) Title(title string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.title = title
}

// Description sets the report description.
func (tt *Test) Description(description string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.res.Description = description
}

// Label adds a label. Labels with the same name accumulate.
func (tt *Test) Label(name, value string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.res.Labels = append(tt.res.Labels, result.Label{Name: name, Value: value})
}

// Feature adds a feature label.
func (tt *Test) Feature(value string) { tt.Label("feature", value) }

// Story adds a story label.
func (tt *Test) Story(value string) { tt.Label("story", value) }

// Epic adds an epic label.
func (tt *Test) Epic(value string) { tt.Label("epic", value) }

// Severity adds a severity label (blocker, critical, normal, minor, trivial).
func (tt *Test) Severity(value string) { tt.Label("severity", value) }

// Tag adds one tag label per value.
func (tt *Test) Tag(values ...string) {
	for _, v := range values {
		tt.Label("tag", v)
	}
}

// Owner adds an owner label.
func (tt *Test) Owner(value string) { tt.Label("owner", value) }

// Link adds a link to an external resource.
func (tt *Test) Link(name, url string) {
	tt.addLink(result.Link{Name: name, URL: url, Type: "link"})
}

// Issue adds a link to an issue tracker entry.
func (tt *Test) Issue(name, url string) {
	tt.addLink(result.Link{Name: name, URL: url, Type: "issue"})
}

func (tt *Test) addLink(l result.Link) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.res.Links = append(tt.res.Links, l)
}

// Parameter attaches a dynamic parameter. Setting a name again replaces the
// earlier value in place. Parameters never change the test outcome.
func (tt *Test) Parameter(name string, value any, opts ...ParameterOption) {
	p := result.Parameter{Name: name, Value: fmt.Sprintf("%v", value)}
	for _, opt := range opts {
		opt(&p)
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()
	for i := range tt.res.Parameters {
		if tt.res.Parameters[i].Name == name {
			tt.res.Parameters[i] = p
			return
		}
	}
	tt.res.Parameters = append(tt.res.Parameters, p)
}

// Attach writes data as an attachment of the innermost open step, or of the
// test when no step is open.
func (tt *Test) Attach(name, mimeType string, data []byte) {
	source := result.AttachmentSource(uuid.NewString(), mimeType)
	if !tt.reporter.writeAttachment(tt.ctx, source, data) {
		return
	}

	a := result.Attachment{Name: name, Source: source, Type: mimeType}

	tt.mu.Lock()
	defer tt.mu.Unlock()
	if n := len(tt.frames); n > 0 {
		tt.frames[n-1].step.Attachments = append(tt.frames[n-1].step.Attachments, a)
		return
	}
	tt.res.Attachments = append(tt.res.Attachments, a)
}

// Result returns a snapshot of the record. Steps still open are not included.
func (tt *Test) Result() *result.Result {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	snapshot := tt.res.Clone()
	if tt.title != "" {
		snapshot.Name = interpolate(tt.title, snapshot.Parameters)
	}
	return snapshot
}

func (tt *Test) markBroken(details *result.StatusDetails) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if tt.broken == nil {
		tt.broken = details
	}
}

// finish computes the final status and writes the record.
func (tt *Test) finish() {
	tt.mu.Lock()
	if tt.done {
		tt.mu.Unlock()
		return
	}
	tt.done = true

	stop := tt.reporter.now()
	res := &tt.res

	switch {
	case tt.broken != nil:
		res.Status = result.StatusBroken
		res.StatusDetails = tt.broken
	case tt.t.Failed():
		res.Status = result.StatusFailed
		res.StatusDetails = firstFailure(res.Steps)
	case tt.t.Skipped():
		res.Status = result.StatusSkipped
	default:
		res.Status = result.StatusPassed
	}
	res.Stage = result.StageFinished
	res.Stop = result.Millis(stop)

	if tt.title != "" {
		res.Name = interpolate(tt.title, res.Parameters)
	}
	res.Labels = tt.mergeLabels(res.Labels)
	res.HistoryID = result.HistoryID(res.FullName, res.Parameters)
	res.TestCaseID = result.TestCaseID(res.FullName)

	snapshot := res.Clone()
	tt.mu.Unlock()

	tt.span.SetAttributes(tracing.ParameterAttributes(snapshot.Parameters)...)
	tracing.EndSpanAt(tt.span, snapshot.Status, snapshot.StatusDetails, stop)

	tt.reporter.writeResult(tt.ctx, snapshot)

	records.Delete(tt.t)
	recordsByName.CompareAndDelete(tt.t.Name(), tt)
}

// mergeLabels adds the reporter's labels and the suite label unless the test
// already set a label with the same name.
func (tt *Test) mergeLabels(labels []result.Label) []result.Label {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l.Name] = true
	}

	for _, l := range tt.reporter.labels {
		if !seen[l.Name] {
			labels = append(labels, l)
		}
	}
	if !seen[labelSuite] {
		suite, _, _ := strings.Cut(tt.t.Name(), "/")
		labels = append(labels, result.Label{Name: labelSuite, Value: suite})
	}
	return labels
}

func firstFailure(steps []result.Step) *result.StatusDetails {
	for i := range steps {
		if d := firstFailure(steps[i].Steps); d != nil {
			return d
		}
		if steps[i].Status.IsFailure() && steps[i].StatusDetails != nil {
			c := *steps[i].StatusDetails
			return &c
		}
	}
	return nil
}

// Step records a step on t's record. See (*Test).Step.
func Step(t TB, name string, fn func()) {
	t.Helper()
	Begin(t).Step(name, fn)
}

// StepE records a step on t's record. See (*Test).StepE.
func StepE(t TB, name string, fn func() error) error {
	t.Helper()
	return Begin(t).StepE(name, fn)
}

// Title sets the report name of t's record.
func Title(t TB, title string) {
	t.Helper()
	Begin(t).Title(title)
}

// Description sets the report description of t's record.
func Description(t TB, description string) {
	t.Helper()
	Begin(t).Description(description)
}

// Parameter attaches a dynamic parameter to t's record.
func Parameter(t TB, name string, value any, opts ...ParameterOption) {
	t.Helper()
	Begin(t).Parameter(name, value, opts...)
}

// Label adds a label to t's record.
func Label(t TB, name, value string) {
	t.Helper()
	Begin(t).Label(name, value)
}

// Attach adds an attachment to t's record.
func Attach(t TB, name, mimeType string, data []byte) {
	t.Helper()
	Begin(t).Attach(name, mimeType, data)
}
