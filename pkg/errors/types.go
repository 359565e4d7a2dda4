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

// Package errors defines the typed errors shared by the reporting library and
// the tally CLI.
package errors

import (
	"fmt"
)

// ValidationError represents a misdeclared annotation or invalid user input.
// Use this for parametrization arity mismatches, id count mismatches and bad
// command-line arguments.
type ValidationError struct {
	// Field identifies which declaration or input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// SuggestionText provides actionable guidance for fixing the error
	SuggestionText string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// IsUserVisible implements UserVisibleError.
func (e *ValidationError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ValidationError) UserMessage() string { return e.Message }

// Suggestion implements UserVisibleError.
func (e *ValidationError) Suggestion() string { return e.SuggestionText }

// NotFoundError represents a missing results directory, result file or history entry.
type NotFoundError struct {
	// Resource is the kind of thing that was looked up (e.g., "results", "history")
	Resource string

	// ID is the identifier or path that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsUserVisible implements UserVisibleError.
func (e *NotFoundError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *NotFoundError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *NotFoundError) Suggestion() string {
	if e.Resource == "results" {
		return "run the tests with TALLY_RESULTS_DIR set, or pass the results directory explicitly"
	}
	return ""
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "tracing.sampling.rate")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error: %s", e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *ConfigError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ConfigError) UserMessage() string { return e.Reason }

// Suggestion implements UserVisibleError.
func (e *ConfigError) Suggestion() string {
	return "check tally.yaml and the TALLY_* environment variables"
}

// SinkError wraps a failure to persist a report record.
type SinkError struct {
	// Sink names the destination (e.g., "dir", "history")
	Sink string

	// Op is the operation that failed (e.g., "write result")
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink: %s: %v", e.Sink, e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SinkError) Unwrap() error {
	return e.Cause
}
