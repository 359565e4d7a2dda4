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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func exportOne(t *testing.T, cfg ConsoleConfig, name string) string {
	t.Helper()
	var buf bytes.Buffer
	cfg.Writer = &buf
	exp, err := NewConsoleExporter(cfg)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer("test").Start(context.Background(), name)
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
	return buf.String()
}

func TestConsoleExporter(t *testing.T) {
	out := exportOne(t, ConsoleConfig{}, "TestLogin")
	assert.Contains(t, out, "TestLogin")
	assert.Contains(t, out, "\n\t", "indented by default")
	assert.Contains(t, out, "StartTime")
}

func TestConsoleExporter_CompactWithoutTimestamps(t *testing.T) {
	out := exportOne(t, ConsoleConfig{Compact: true, OmitTimestamps: true}, "TestLogout")
	assert.Contains(t, out, "TestLogout")
	assert.NotContains(t, strings.TrimSpace(out), "\n", "one line per span")
	assert.Contains(t, out, `"StartTime":"0001-01-01T00:00:00Z"`)
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		insecure bool
		want     target
		wantErr  string
	}{
		{name: "host port", endpoint: "collector:4317", want: target{host: "collector:4317"}},
		{name: "host port insecure", endpoint: "localhost:4317", insecure: true, want: target{host: "localhost:4317", insecure: true}},
		{name: "http url", endpoint: "http://localhost:4318", want: target{host: "localhost:4318", insecure: true}},
		{name: "https url with path", endpoint: "https://otel.example.com/custom/traces/", want: target{host: "otel.example.com", path: "/custom/traces"}},
		{name: "empty", endpoint: "", wantErr: "endpoint is required"},
		{name: "bad scheme", endpoint: "ftp://host", wantErr: "scheme must be http or https"},
		{name: "no host", endpoint: "http:///v1/traces", wantErr: "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEndpoint(tt.endpoint, tt.insecure)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOTLPExporters_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewOTLPExporter(ctx, OTLPConfig{})
	assert.ErrorContains(t, err, "otlp exporter: endpoint is required")

	_, err = NewOTLPHTTPExporter(ctx, OTLPConfig{})
	assert.ErrorContains(t, err, "otlp-http exporter: endpoint is required")

	_, err = NewOTLPExporter(ctx, OTLPConfig{Endpoint: "localhost:4317", Compression: "zstd"})
	assert.ErrorContains(t, err, `unsupported compression "zstd"`)
}

func TestOTLPExporters_Create(t *testing.T) {
	ctx := context.Background()

	grpcExp, err := NewOTLPExporter(ctx, OTLPConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		Timeout:     2 * time.Second,
		Compression: CompressionGzip,
	})
	require.NoError(t, err)
	assert.NoError(t, grpcExp.Shutdown(ctx))

	httpExp, err := NewOTLPHTTPExporter(ctx, OTLPConfig{
		Endpoint: "http://localhost:4318/v1/traces",
		Headers:  map[string]string{"x-team": "qa"},
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	assert.NoError(t, httpExp.Shutdown(ctx))
}
