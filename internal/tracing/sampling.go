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
	"github.com/cespare/xxhash/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplerConfig mirrors config.SamplingConfig.
type SamplerConfig struct {
	Enabled bool
	// Rate is the fraction of tests traced, 0 to 1.
	Rate float64
	// AlwaysSampleErrors keeps spans that start with an error or a failed
	// or broken status.
	AlwaysSampleErrors bool
}

// NewSampler returns the sampler for cfg. Root spans are sampled per test
// name rather than per trace ID, so a given test is traced on every run or
// on none and its traces stay comparable between runs. Steps follow their
// test's decision.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	if !cfg.Enabled || cfg.Rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(&testSampler{
		rate:       max(cfg.Rate, 0),
		keepErrors: cfg.AlwaysSampleErrors,
		fallback:   sdktrace.TraceIDRatioBased(max(cfg.Rate, 0)),
	})
}

type testSampler struct {
	rate       float64
	keepErrors bool
	// fallback decides spans that carry no test name.
	fallback sdktrace.Sampler
}

func (s *testSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	var name string
	for _, attr := range p.Attributes {
		switch attr.Key {
		case AttrTestName:
			name = attr.Value.AsString()
		case "error":
			if s.keepErrors && attr.Value.AsBool() {
				return s.result(p, sdktrace.RecordAndSample)
			}
		case AttrStatus:
			if s.keepErrors && (attr.Value.AsString() == "failed" || attr.Value.AsString() == "broken") {
				return s.result(p, sdktrace.RecordAndSample)
			}
		}
	}

	if name == "" {
		return s.fallback.ShouldSample(p)
	}
	if nameFraction(name) < s.rate {
		return s.result(p, sdktrace.RecordAndSample)
	}
	return s.result(p, sdktrace.Drop)
}

func (s *testSampler) result(p sdktrace.SamplingParameters, d sdktrace.SamplingDecision) sdktrace.SamplingResult {
	return sdktrace.SamplingResult{
		Decision:   d,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s *testSampler) Description() string {
	desc := "TestNameSampler{" + s.fallback.Description()
	if s.keepErrors {
		desc += ",keepErrors"
	}
	return desc + "}"
}

// nameFraction maps a test name onto [0, 1). Names differing only in a
// suffix, such as subtests, land far apart.
func nameFraction(name string) float64 {
	return float64(xxhash.Sum64String(name)>>11) / (1 << 53)
}
