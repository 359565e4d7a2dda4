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

// Package config loads tally configuration from a YAML file and TALLY_*
// environment variables. The same configuration drives the reporter inside a
// test binary and the tally CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tallyerrors "github.com/tombee/tally/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// DefaultResultsDir is the results directory used when nothing is configured.
const DefaultResultsDir = "allure-results"

// Config represents the complete tally configuration.
type Config struct {
	// ResultsDir is where result, container and attachment files are written.
	// Environment: TALLY_RESULTS_DIR, ALLURE_RESULTS_DIR
	ResultsDir string `yaml:"results_dir"`

	// Clean removes previous result files from ResultsDir before a run.
	// Environment: TALLY_CLEAN
	Clean bool `yaml:"clean"`

	// Labels are attached to every result (e.g., framework, host).
	Labels map[string]string `yaml:"labels,omitempty"`

	// History configures the sqlite result history.
	History HistoryConfig `yaml:"history"`

	// Log configures logging for the reporter and the CLI.
	Log LogConfig `yaml:"log"`

	// Tracing configures step spans.
	Tracing TracingConfig `yaml:"tracing"`

	// resultsDirSet records whether ResultsDir came from a file or the
	// environment rather than DefaultResultsDir.
	resultsDirSet bool
}

// ResultsDirConfigured reports whether ResultsDir was set by the config file
// or the environment. Load leaves it false when the default was used.
func (c *Config) ResultsDirConfigured() bool {
	return c.resultsDirSet
}

// HistoryConfig configures the sqlite result history store.
type HistoryConfig struct {
	// Enabled turns on writing results into the history database.
	Enabled bool `yaml:"enabled"`

	// Path is the database file. Setting TALLY_HISTORY_DB enables history.
	// Default: <data dir>/history.db
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`

	// AddSource adds source file and line to log records.
	AddSource bool `yaml:"add_source"`
}

// TracingConfig configures OpenTelemetry spans for tests and steps.
type TracingConfig struct {
	// Enabled turns on span creation. Environment: TALLY_TRACING
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies the test binary in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is reported as service.version.
	ServiceVersion string `yaml:"service_version,omitempty"`

	// Sampling configures trace sampling.
	Sampling SamplingConfig `yaml:"sampling"`

	// Exporters lists span export destinations.
	Exporters []ExporterConfig `yaml:"exporters,omitempty"`

	// BatchTimeout is how long spans are buffered before export.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	Enabled            bool    `yaml:"enabled"`
	Rate               float64 `yaml:"rate"`
	AlwaysSampleErrors bool    `yaml:"always_sample_errors"`
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is console, otlp or otlp-http.
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS for OTLP exporters.
	Insecure bool `yaml:"insecure,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Timeout bounds a single export request.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Compression is gzip or none.
	Compression string `yaml:"compression,omitempty"`
}

// Supported exporter types.
const (
	ExporterConsole  = "console"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp-http"
)

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		ResultsDir: DefaultResultsDir,
		Labels: map[string]string{
			"framework": "gotest",
			"language":  "go",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			ServiceName: "tally",
			Sampling: SamplingConfig{
				Rate:               1.0,
				AlwaysSampleErrors: true,
			},
			BatchTimeout: time.Second,
		},
	}
}

// Load loads configuration from an optional YAML file, then applies
// environment overrides and validates the result. Environment variables take
// precedence over the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	cfg.ResultsDir = ""

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &tallyerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.resultsDirSet = cfg.ResultsDir != ""
	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &tallyerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault resolves the config file location with ResolvePath and loads it.
func LoadDefault(explicit string) (*Config, error) {
	return Load(ResolvePath(explicit))
}

// ResolvePath picks the config file to load: the explicit path, then
// TALLY_CONFIG, then ./tally.yaml, then the XDG config file. Returns "" when
// none exists.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("TALLY_CONFIG"); env != "" {
		return env
	}
	if _, err := os.Stat("tally.yaml"); err == nil {
		return "tally.yaml"
	}
	if path, err := ConfigPath(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyDefaults fills zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.ResultsDir == "" {
		c.ResultsDir = defaults.ResultsDir
	}
	if c.Labels == nil {
		c.Labels = defaults.Labels
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.Sampling.Rate == 0 && !c.Tracing.Sampling.Enabled {
		c.Tracing.Sampling.Rate = defaults.Tracing.Sampling.Rate
	}
	if c.Tracing.BatchTimeout == 0 {
		c.Tracing.BatchTimeout = defaults.Tracing.BatchTimeout
	}
	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = filepath.Join(DataDir(), "history.db")
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv applies TALLY_* environment overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("ALLURE_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
		c.resultsDirSet = true
	}
	if val := os.Getenv("TALLY_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
		c.resultsDirSet = true
	}

	if val := os.Getenv("TALLY_CLEAN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Clean = b
		}
	}

	if val := os.Getenv("TALLY_HISTORY_DB"); val != "" {
		c.History.Enabled = true
		c.History.Path = val
	}

	if val := os.Getenv("TALLY_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("TALLY_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}

	if val := os.Getenv("TALLY_TRACING"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("TALLY_TRACE_EXPORTER"); val != "" {
		c.Tracing.Enabled = true
		c.Tracing.Exporters = []ExporterConfig{{
			Type:     strings.ToLower(val),
			Endpoint: os.Getenv("TALLY_TRACE_ENDPOINT"),
			Insecure: os.Getenv("TALLY_TRACE_INSECURE") == "1" || os.Getenv("TALLY_TRACE_INSECURE") == "true",
		}}
	}
	if val := os.Getenv("TALLY_TRACE_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.Tracing.Sampling.Enabled = true
			c.Tracing.Sampling.Rate = rate
		}
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.ResultsDir) == "" {
		errs = append(errs, "results_dir must not be empty")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Tracing.Sampling.Rate < 0 || c.Tracing.Sampling.Rate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sampling.rate must be between 0 and 1, got %v", c.Tracing.Sampling.Rate))
	}
	for i, exp := range c.Tracing.Exporters {
		switch exp.Type {
		case ExporterConsole:
		case ExporterOTLP, ExporterOTLPHTTP:
			if exp.Endpoint == "" {
				errs = append(errs, fmt.Sprintf("tracing.exporters[%d].endpoint is required for type %q", i, exp.Type))
			}
			if exp.Compression != "" && exp.Compression != "gzip" && exp.Compression != "none" {
				errs = append(errs, fmt.Sprintf("tracing.exporters[%d].compression must be one of [gzip, none], got %q", i, exp.Compression))
			}
		default:
			errs = append(errs, fmt.Sprintf("tracing.exporters[%d].type must be one of [console, otlp, otlp-http], got %q", i, exp.Type))
		}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
