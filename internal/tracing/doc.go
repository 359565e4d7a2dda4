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

/*
Package tracing provides OpenTelemetry tracing and Prometheus metrics for tally.

Inside a test binary, every test record opens a root span and every step opens
a child span. Spans are exported through the exporters configured in
config.TracingConfig (console, OTLP gRPC, OTLP HTTP).

# Quick Start

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	tracer := provider.Tracer("tally")
	ctx, span := tracer.Start(ctx, t.Name(),
	    trace.WithAttributes(tracing.ParameterAttributes(params)...),
	)
	defer tracing.EndSpan(span, result.StatusPassed, nil)

# Metrics

The tally CLI exposes result metrics while watching a results directory:

	metrics, err := tracing.NewMetricsProvider("tally", prometheus.NewRegistry())
	metrics.Collector().RecordResult(ctx, r)
	http.Handle("/metrics", metrics.Handler())

Exported metrics:

  - tally_results_total{status}: results seen, by status
  - tally_steps_total{status}: steps seen, by status
  - tally_result_duration_seconds: result durations
*/
package tracing
