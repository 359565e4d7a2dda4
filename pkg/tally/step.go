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
	"runtime/debug"

	"github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// frame is an open step or fixture.
type frame struct {
	step         result.Step
	ctx          context.Context
	span         trace.Span
	failedBefore bool
}

// Step records fn as a named step. Steps called inside fn become child
// steps. The step is:
//
//   - passed when fn returns and the test did not fail during fn
//   - failed when the test failed during fn, including t.FailNow
//   - skipped when t.SkipNow unwound through fn
//   - broken when fn panicked; the panic continues unchanged
func (tt *Test) Step(name string, fn func()) {
	tt.t.Helper()
	_ = tt.runFrame(name, func() error {
		fn()
		return nil
	}, tt.appendStep)
}

// StepE is Step for a body that returns an error. A non-nil error marks the
// step failed and is returned unchanged. It does not fail the test.
func (tt *Test) StepE(name string, fn func() error) error {
	tt.t.Helper()
	return tt.runFrame(name, fn, tt.appendStep)
}

// runFrame runs fn inside a new frame. done receives the closed frame whether
// fn returns, panics or exits the goroutine.
func (tt *Test) runFrame(name string, fn func() error, done func(result.Step)) (err error) {
	f := tt.push(name)
	completed := false

	defer func() {
		if completed {
			status := result.StatusPassed
			var details *result.StatusDetails
			switch {
			case err != nil:
				status = result.StatusFailed
				details = &result.StatusDetails{Message: err.Error()}
			case tt.t.Failed() && !f.failedBefore:
				status = result.StatusFailed
			}
			done(tt.pop(f, status, details))
			return
		}

		// recover returns nil when fn exited through runtime.Goexit.
		if rec := recover(); rec != nil {
			details := &result.StatusDetails{
				Message: fmt.Sprint(rec),
				Trace:   string(debug.Stack()),
			}
			done(tt.pop(f, result.StatusBroken, details))
			tt.markBroken(details)
			panic(rec)
		}

		status := result.StatusFailed
		if tt.t.Skipped() && !tt.t.Failed() {
			status = result.StatusSkipped
		}
		done(tt.pop(f, status, nil))
	}()

	err = fn()
	completed = true
	return err
}

func (tt *Test) push(name string) *frame {
	failed := tt.t.Failed()

	tt.mu.Lock()
	defer tt.mu.Unlock()

	parent := tt.ctx
	if n := len(tt.frames); n > 0 {
		parent = tt.frames[n-1].ctx
	}
	ctx, span := tt.reporter.tracer.Start(parent, name,
		trace.WithAttributes(attribute.String(tracing.AttrStepName, name)),
	)

	f := &frame{
		step: result.Step{
			Name:  name,
			Stage: result.StageRunning,
			Start: result.Millis(tt.reporter.now()),
		},
		ctx:          ctx,
		span:         span,
		failedBefore: failed,
	}
	tt.frames = append(tt.frames, f)
	return f
}

func (tt *Test) pop(f *frame, status result.Status, details *result.StatusDetails) result.Step {
	tt.mu.Lock()
	for i := len(tt.frames) - 1; i >= 0; i-- {
		if tt.frames[i] == f {
			tt.frames = append(tt.frames[:i], tt.frames[i+1:]...)
			break
		}
	}
	f.step.Status = status
	f.step.StatusDetails = details
	f.step.Stage = result.StageFinished
	f.step.Stop = result.Millis(tt.reporter.now())
	step := f.step
	tt.mu.Unlock()

	tracing.EndSpan(f.span, status, details)
	log.Trace(tt.logger, "step finished",
		slog.String(log.StepKey, step.Name),
		slog.String(log.StatusKey, string(status)),
		log.Duration("duration", step.Duration()))

	return step
}

// appendStep adds a closed step to the innermost open frame, or to the test.
func (tt *Test) appendStep(step result.Step) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if n := len(tt.frames); n > 0 {
		parent := &tt.frames[n-1].step
		parent.Steps = append(parent.Steps, step)
		return
	}
	tt.res.Steps = append(tt.res.Steps, step)
}
