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
	"log/slog"
	"sort"
	"time"

	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for Reporter construction.
type Option func(*Reporter) error

// WithSink sets where records are written. Several WithSink options fan out
// to every sink.
func WithSink(sink Sink) Option {
	return func(r *Reporter) error {
		if sink == nil {
			return fmt.Errorf("sink cannot be nil")
		}
		r.sinks = append(r.sinks, sink)
		return nil
	}
}

// WithTracerProvider opens a span for every test and step.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Reporter) error {
		if tp == nil {
			return fmt.Errorf("tracer provider cannot be nil")
		}
		r.tracer = tp.Tracer(instrumentationName)
		return nil
	}
}

// WithLogger sets the logger used for sink failures and debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithClock overrides the time source for start and stop timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		r.now = now
		return nil
	}
}

// WithLabels adds labels to every record (e.g., host, framework, language).
// Labels set on a test take precedence over these.
func WithLabels(labels map[string]string) Option {
	return func(r *Reporter) error {
		names := make([]string, 0, len(labels))
		for name := range labels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			r.labels = append(r.labels, result.Label{Name: name, Value: labels[name]})
		}
		return nil
	}
}

// TestOption configures a test record when it is first created.
type TestOption func(*testOptions)

type testOptions struct {
	reporter    *Reporter
	title       string
	description string
	labels      []result.Label
}

// WithReporter records the test with r instead of the default reporter.
func WithReporter(r *Reporter) TestOption {
	return func(o *testOptions) {
		o.reporter = r
	}
}

// WithTestTitle sets the initial title of the record.
func WithTestTitle(title string) TestOption {
	return func(o *testOptions) {
		o.title = title
	}
}

// WithTestDescription sets the initial description of the record.
func WithTestDescription(description string) TestOption {
	return func(o *testOptions) {
		o.description = description
	}
}

// WithTestLabel adds a label to the record.
func WithTestLabel(name, value string) TestOption {
	return func(o *testOptions) {
		o.labels = append(o.labels, result.Label{Name: name, Value: value})
	}
}

// ParameterOption configures a dynamic parameter.
type ParameterOption func(*result.Parameter)

// Excluded leaves the parameter out of the history id, so runs with
// different values are still tracked as one test.
func Excluded() ParameterOption {
	return func(p *result.Parameter) {
		p.Excluded = true
	}
}

// Masked shows the parameter as ****** in reports.
func Masked() ParameterOption {
	return func(p *result.Parameter) {
		p.Mode = result.ParameterModeMasked
	}
}

// Hidden keeps the parameter out of reports. It still counts toward the
// history id unless Excluded is also given.
func Hidden() ParameterOption {
	return func(p *result.Parameter) {
		p.Mode = result.ParameterModeHidden
	}
}
