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
	"log/slog"

	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/tracing/export"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// CreateExporter creates a span exporter from configuration. It returns a nil
// exporter for type "none".
func CreateExporter(ctx context.Context, cfg config.ExporterConfig) (sdktrace.SpanExporter, error) {
	otlp := export.OTLPConfig{
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		Headers:     cfg.Headers,
		Timeout:     cfg.Timeout,
		Compression: cfg.Compression,
	}

	switch cfg.Type {
	case config.ExporterConsole:
		return export.NewConsoleExporter(export.ConsoleConfig{})
	case config.ExporterOTLP:
		return export.NewOTLPExporter(ctx, otlp)
	case config.ExporterOTLPHTTP, "otlp_http":
		return export.NewOTLPHTTPExporter(ctx, otlp)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Type)
	}
}

// CreateProcessors builds a batch span processor for every configured
// exporter. Exporter creation failures are logged and skipped.
func CreateProcessors(ctx context.Context, cfg config.TracingConfig, logger *slog.Logger) []sdktrace.SpanProcessor {
	var processors []sdktrace.SpanProcessor

	for i, exporterCfg := range cfg.Exporters {
		exporter, err := CreateExporter(ctx, exporterCfg)
		if err != nil {
			logger.Warn("failed to create exporter, skipping",
				"index", i,
				"type", exporterCfg.Type,
				"endpoint", exporterCfg.Endpoint,
				"error", err)
			continue
		}
		if exporter == nil {
			continue
		}

		var batchOpts []sdktrace.BatchSpanProcessorOption
		if cfg.BatchTimeout > 0 {
			batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
		}

		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter, batchOpts...))

		logger.Debug("created exporter",
			"type", exporterCfg.Type,
			"endpoint", exporterCfg.Endpoint)
	}

	return processors
}
