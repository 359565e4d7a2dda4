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
package export

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// CompressionGzip enables gzip compression of export requests.
const CompressionGzip = "gzip"

// OTLPConfig configures the OTLP exporters.
type OTLPConfig struct {
	// Endpoint is host:port, or a URL. An http:// URL implies Insecure and,
	// for the HTTP exporter, a non-root path replaces /v1/traces.
	Endpoint string

	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string

	// Timeout bounds a single export. Zero keeps the exporter default.
	Timeout time.Duration

	// Compression is "gzip" or empty.
	Compression string
}

// target is an endpoint split into the parts the exporters take separately.
type target struct {
	host     string
	path     string
	insecure bool
}

func parseEndpoint(endpoint string, insecure bool) (target, error) {
	if endpoint == "" {
		return target{}, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		return target{host: endpoint, insecure: insecure}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return target{}, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		insecure = true
	case "https":
	default:
		return target{}, fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
	}
	if u.Host == "" {
		return target{}, fmt.Errorf("invalid endpoint %q: missing host", endpoint)
	}

	t := target{host: u.Host, insecure: insecure}
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		t.path = p
	}
	return t, nil
}

func checkCompression(c string) error {
	switch c {
	case "", "none", CompressionGzip:
		return nil
	default:
		return fmt.Errorf("unsupported compression %q", c)
	}
}

// NewOTLPExporter creates an OTLP gRPC span exporter. The connection is made
// lazily, so an unreachable collector does not stall a test run.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (trace.SpanExporter, error) {
	t, err := parseEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	if err := checkCompression(cfg.Compression); err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(t.host)}
	if t.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(
			credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == CompressionGzip {
		opts = append(opts, otlptracegrpc.WithCompressor(CompressionGzip))
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return exp, nil
}

// NewOTLPHTTPExporter creates an OTLP HTTP span exporter.
func NewOTLPHTTPExporter(ctx context.Context, cfg OTLPConfig) (trace.SpanExporter, error) {
	t, err := parseEndpoint(cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("otlp-http exporter: %w", err)
	}
	if err := checkCompression(cfg.Compression); err != nil {
		return nil, fmt.Errorf("otlp-http exporter: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(t.host)}
	if t.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(t.path))
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(cfg.Timeout))
	}
	if cfg.Compression == CompressionGzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp-http exporter: %w", err)
	}
	return exp, nil
}
