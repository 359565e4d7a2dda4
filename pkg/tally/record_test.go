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
	"github.com/tombee/tally/internal/tracing"
	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestBegin_ReturnsSameRecord(t *testing.T) {
	r, mem := newTestReporter(t)
	ft := newFakeT("TestSame")

	ft.run(func() {
		a := Begin(ft, WithReporter(r))
		b := Begin(ft)
		assert.Same(t, a, b)
		assert.NotEmpty(t, a.UUID())
	})

	assert.Len(t, mem.Results(), 1)

	// A finished record is released, so a new one can start.
	_, ok := records.Load(ft)
	assert.False(t, ok)
}

func TestTitleInterpolation(t *testing.T) {
	res, _ := runFake(t, "TestTitle", func(ft *fakeT, rec *Test) {
		rec.Parameter("name", "Alice")
		rec.Parameter("token", "s3cret", Masked())
		rec.Title("Greets {name} with {token} and {missing}")

		assert.Equal(t, "Greets Alice with ****** and {missing}", rec.Result().Name)
	})

	assert.Equal(t, "Greets Alice with ****** and {missing}", res.Name)
	assert.Equal(t, "TestTitle", res.FullName)
}

func TestInterpolate(t *testing.T) {
	params := []result.Parameter{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2", Mode: result.ParameterModeHidden},
	}

	tests := []struct {
		title string
		want  string
	}{
		{"plain", "plain"},
		{"{a}", "1"},
		{"{ a }-{a}", "1-1"},
		{"{b}", result.MaskedValue},
		{"{c}", "{c}"},
		{"{}", "{}"},
		{"{{a}}", "{1}"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, interpolate(tt.title, params))
		})
	}
}

func TestParameters(t *testing.T) {
	res, _ := runFake(t, "TestParams", func(ft *fakeT, rec *Test) {
		Parameter(ft, "count", 1)
		Parameter(ft, "count", 2)
		Parameter(ft, "run_at", "now", Excluded())
		Parameter(ft, "debug", true, Hidden())
	})

	assert.Equal(t, []result.Parameter{
		{Name: "count", Value: "2"},
		{Name: "run_at", Value: "now", Excluded: true},
		{Name: "debug", Value: "true", Mode: result.ParameterModeHidden},
	}, res.Parameters)

	assert.Equal(t, result.HistoryID("TestParams", res.Parameters), res.HistoryID)
	assert.Equal(t, result.HistoryID("TestParams", []result.Parameter{
		{Name: "count", Value: "2"},
		{Name: "debug", Value: "true"},
	}), res.HistoryID, "excluded parameters do not affect the history id")
	assert.Equal(t, result.TestCaseID("TestParams"), res.TestCaseID)
}

func TestLabelsAndLinks(t *testing.T) {
	r, mem := newTestReporter(t, WithLabels(map[string]string{"framework": "gotest", "feature": "global"}))
	ft := newFakeT("TestLabels/sub")

	ft.run(func() {
		rec := Begin(ft, WithReporter(r), WithTestLabel("owner", "qa"), WithTestDescription("desc"))
		rec.Feature("login")
		rec.Tag("smoke", "fast")
		rec.Severity("critical")
		rec.Link("docs", "https://example.com/docs")
		rec.Issue("BUG-1", "https://example.com/BUG-1")
		Label(ft, "layer", "api")
		Description(ft, "overridden")
	})

	res := mem.Results()[0]
	labels := res.Labels

	assert.Contains(t, labels, result.Label{Name: "owner", Value: "qa"})
	assert.Contains(t, labels, result.Label{Name: "feature", Value: "login"})
	assert.NotContains(t, labels, result.Label{Name: "feature", Value: "global"}, "test labels win over reporter labels")
	assert.Contains(t, labels, result.Label{Name: "framework", Value: "gotest"})
	assert.Contains(t, labels, result.Label{Name: "tag", Value: "smoke"})
	assert.Contains(t, labels, result.Label{Name: "tag", Value: "fast"})
	assert.Contains(t, labels, result.Label{Name: "layer", Value: "api"})
	assert.Contains(t, labels, result.Label{Name: "suite", Value: "TestLabels"})
	assert.Equal(t, "overridden", res.Description)

	assert.Equal(t, []result.Link{
		{Name: "docs", URL: "https://example.com/docs", Type: "link"},
		{Name: "BUG-1", URL: "https://example.com/BUG-1", Type: "issue"},
	}, res.Links)
}

func TestAttach(t *testing.T) {
	r, mem := newTestReporter(t)
	ft := newFakeT("TestAttach")

	ft.run(func() {
		rec := Begin(ft, WithReporter(r))
		Attach(ft, "request", "application/json", []byte(`{"id":1}`))
		rec.Step("with attachment", func() {
			rec.Attach("log", "text/plain", []byte("hello"))
		})
	})

	res := mem.Results()[0]

	require.Len(t, res.Attachments, 1)
	top := res.Attachments[0]
	assert.Equal(t, "request", top.Name)
	assert.Equal(t, "application/json", top.Type)
	assert.True(t, result.IsAttachmentFile(top.Source))
	data, ok := mem.Attachment(top.Source)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":1}`, string(data))

	require.Len(t, res.Steps, 1)
	require.Len(t, res.Steps[0].Attachments, 1)
	inner := res.Steps[0].Attachments[0]
	data, ok = mem.Attachment(inner.Source)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
}

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	r, _ := newTestReporter(t, WithTracerProvider(tp))

	parent := newFakeT("TestSpans")
	child := newFakeT("TestSpans/child")

	parent.run(func() {
		Begin(parent, WithReporter(r))
		child.run(func() {
			rec := Begin(child, WithReporter(r))
			rec.Parameter("user", "bob")
			rec.Step("login", func() { child.Error() })
		})
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := make(map[string]tracetest.SpanStub, len(spans))
	for _, s := range spans {
		byName[s.Name] = s
	}

	parentSpan := byName["TestSpans"]
	childSpan := byName["TestSpans/child"]
	stepSpan := byName["login"]

	assert.Equal(t, parentSpan.SpanContext.SpanID(), childSpan.Parent.SpanID())
	assert.Equal(t, childSpan.SpanContext.SpanID(), stepSpan.Parent.SpanID())
	assert.Equal(t, parentSpan.SpanContext.TraceID(), stepSpan.SpanContext.TraceID())

	assert.Equal(t, codes.Error, stepSpan.Status.Code)
	assert.Equal(t, codes.Error, childSpan.Status.Code)
	assert.Equal(t, codes.Ok, parentSpan.Status.Code)

	assert.Contains(t, childSpan.Attributes, attribute.String(tracing.AttrParamPrefix+"user", "bob"))
	assert.Contains(t, childSpan.Attributes, attribute.String(tracing.AttrStatus, string(result.StatusFailed)))
}
