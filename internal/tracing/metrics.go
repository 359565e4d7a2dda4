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
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tombee/tally/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records result metrics.
type MetricsCollector struct {
	meter metric.Meter

	resultsTotal   metric.Int64Counter
	stepsTotal     metric.Int64Counter
	resultDuration metric.Float64Histogram
}

// NewMetricsCollector creates a collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("tally")

	mc := &MetricsCollector{meter: meter}

	var err error

	mc.resultsTotal, err = meter.Int64Counter(
		"tally_results_total",
		metric.WithDescription("Total number of test results seen"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	mc.stepsTotal, err = meter.Int64Counter(
		"tally_steps_total",
		metric.WithDescription("Total number of test steps seen"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	mc.resultDuration, err = meter.Float64Histogram(
		"tally_result_duration_seconds",
		metric.WithDescription("Test result duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordResult records one test result and all of its steps.
func (mc *MetricsCollector) RecordResult(ctx context.Context, r *result.Result) {
	attrs := metric.WithAttributes(attribute.String("status", string(r.Status)))

	mc.resultsTotal.Add(ctx, 1, attrs)
	mc.resultDuration.Record(ctx, r.Duration().Seconds(), attrs)
	mc.recordSteps(ctx, r.Steps)
}

func (mc *MetricsCollector) recordSteps(ctx context.Context, steps []result.Step) {
	for i := range steps {
		mc.stepsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(steps[i].Status))))
		mc.recordSteps(ctx, steps[i].Steps)
	}
}

// MetricsProvider owns a meter provider backed by a Prometheus exporter.
type MetricsProvider struct {
	mp        *sdkmetric.MeterProvider
	collector *MetricsCollector
	handler   http.Handler
}

// NewMetricsProvider creates a meter provider that exports into registry and
// a collector for result metrics.
func NewMetricsProvider(serviceName string, registry *prometheus.Registry) (*MetricsProvider, error) {
	res, err := newResource(context.Background(), serviceName, "")
	if err != nil {
		return nil, err
	}

	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	collector, err := NewMetricsCollector(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return &MetricsProvider{
		mp:        mp,
		collector: collector,
		handler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

// Collector returns the result metrics collector.
func (p *MetricsProvider) Collector() *MetricsCollector {
	return p.collector
}

// Handler returns the HTTP handler for the Prometheus metrics endpoint.
func (p *MetricsProvider) Handler() http.Handler {
	return p.handler
}

// Shutdown releases the meter provider.
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
