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
// Package export builds OpenTelemetry span exporters for test traces.
package export

import (
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ConsoleConfig configures the console exporter.
type ConsoleConfig struct {
	// Writer receives the spans. Defaults to os.Stderr so spans never mix
	// with go test's stdout.
	Writer io.Writer

	// Compact writes one span per line instead of indented JSON.
	Compact bool

	// OmitTimestamps drops start and end times, giving stable output.
	OmitTimestamps bool
}

// NewConsoleExporter creates an exporter that writes spans as JSON.
func NewConsoleExporter(cfg ConsoleConfig) (trace.SpanExporter, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if !cfg.Compact {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if cfg.OmitTimestamps {
		opts = append(opts, stdouttrace.WithoutTimestamps())
	}

	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("console exporter: %w", err)
	}
	return exp, nil
}
