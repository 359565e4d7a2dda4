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

package tracing

import (
	"time"

	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrTestName    = "tally.test.name"
	AttrFullName    = "tally.test.full_name"
	AttrResultUUID  = "tally.result.uuid"
	AttrStepName    = "tally.step.name"
	AttrStatus      = "tally.status"
	AttrParamPrefix = "tally.param."
)

// ParameterAttributes converts report parameters into span attributes.
// Masked values are replaced and hidden parameters are omitted.
func ParameterAttributes(params []result.Parameter) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(params))
	for _, p := range params {
		switch p.Mode {
		case result.ParameterModeHidden:
			continue
		case result.ParameterModeMasked:
			attrs = append(attrs, attribute.String(AttrParamPrefix+p.Name, result.MaskedValue))
		default:
			attrs = append(attrs, attribute.String(AttrParamPrefix+p.Name, p.Value))
		}
	}
	return attrs
}

// SpanStatus maps a report status onto an OpenTelemetry status code.
func SpanStatus(status result.Status) codes.Code {
	switch status {
	case result.StatusPassed, result.StatusSkipped:
		return codes.Ok
	case result.StatusFailed, result.StatusBroken:
		return codes.Error
	default:
		return codes.Unset
	}
}

// EndSpan records the final status on span and ends it.
func EndSpan(span trace.Span, status result.Status, details *result.StatusDetails) {
	EndSpanAt(span, status, details, time.Time{})
}

// EndSpanAt is EndSpan with an explicit end timestamp. A zero end uses the
// current time.
func EndSpanAt(span trace.Span, status result.Status, details *result.StatusDetails, end time.Time) {
	span.SetAttributes(attribute.String(AttrStatus, string(status)))

	code := SpanStatus(status)
	message := ""
	if code == codes.Error && details != nil {
		message = details.Message
	}
	span.SetStatus(code, message)

	if status.IsFailure() {
		span.SetAttributes(attribute.Bool("error", true))
	}

	var opts []trace.SpanEndOption
	if !end.IsZero() {
		opts = append(opts, trace.WithTimestamp(end))
	}
	span.End(opts...)
}
