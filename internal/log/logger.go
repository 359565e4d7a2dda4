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
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format is a log encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LevelTrace sits below Debug. Step and watch events are logged at this
// level so that debug output stays readable for long test runs.
const LevelTrace = slog.Level(-8)

// Attribute keys shared by the reporter, the sinks and the CLI.
const (
	ResultIDKey = "result_uuid"
	TestKey     = "test"
	StepKey     = "step"
	SinkKey     = "sink"
	StatusKey   = "status"
	DurationKey = "duration_ms"
	PathKey     = "path"
)

// Config selects the level, encoding and destination of a logger.
type Config struct {
	// Level is trace, debug, info, warn or error.
	Level  string
	Format Format
	// Output defaults to os.Stderr, keeping logs out of go test's stdout.
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns info-level text logging to stderr.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: FormatText, Output: os.Stderr}
}

// FromEnv builds a Config from the environment. It is used inside test
// binaries, where no configuration file has been read yet.
//
//	TALLY_DEBUG=1|true   debug level with source locations
//	TALLY_LOG_LEVEL      level, preferred over LOG_LEVEL
//	LOG_LEVEL            level
//	LOG_FORMAT           json or text
//	LOG_SOURCE=1         source locations
func FromEnv() *Config {
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) *Config {
	cfg := DefaultConfig()

	switch strings.ToLower(getenv("TALLY_DEBUG")) {
	case "1", "true":
		cfg.Level = "debug"
		cfg.AddSource = true
	default:
		for _, key := range []string{"TALLY_LOG_LEVEL", "LOG_LEVEL"} {
			if v := getenv(key); v != "" {
				cfg.Level = strings.ToLower(v)
				break
			}
		}
	}

	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Format = Format(strings.ToLower(v))
	}
	if getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// New creates a logger. A nil cfg means DefaultConfig. Unknown formats fall
// back to text.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: levelNames,
	}
	if cfg.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// levelNames prints LevelTrace as TRACE rather than slog's DEBUG-4.
func levelNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithTestContext tags logger with a go test name and the UUID of the
// result record being built for it.
func WithTestContext(logger *slog.Logger, testName, resultID string) *slog.Logger {
	return logger.With(slog.String(TestKey, testName), slog.String(ResultIDKey, resultID))
}

func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration records d in whole milliseconds under key_ms.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Int64(key+"_ms", d.Milliseconds())
}

// Trace logs at LevelTrace.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if logger.Enabled(ctx, LevelTrace) {
		logger.LogAttrs(ctx, LevelTrace, msg, attrs...)
	}
}
