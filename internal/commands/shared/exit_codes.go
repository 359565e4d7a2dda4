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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/tally/pkg/errors"
)

// Exit codes for tally commands
const (
	ExitSuccess     = 0
	ExitTestsFailed = 1 // At least one result failed or broke
	ExitUsage       = 2 // Bad flags, filter or query
	ExitNoResults   = 3 // Nothing to report on
	ExitConfig      = 4 // Configuration could not be loaded
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewTestsFailedError reports failed or broken results.
func NewTestsFailedError(failed, broken int) *ExitError {
	return &ExitError{
		Code:    ExitTestsFailed,
		Message: fmt.Sprintf("%d failed, %d broken", failed, broken),
	}
}

// NewUsageError creates an error for invalid arguments, filters or queries
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitUsage,
		Message: msg,
		Cause:   cause,
	}
}

// NewNoResultsError creates an error for an empty or missing results directory
func NewNoResultsError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitNoResults,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration failures
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfig,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCodeFor picks the exit code for err. ExitErrors keep their code; typed
// errors from pkg/errors map onto the matching code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var notFound *pkgerrors.NotFoundError
	var validation *pkgerrors.ValidationError
	var cfgErr *pkgerrors.ConfigError
	switch {
	case errors.As(err, &notFound):
		return ExitNoResults
	case errors.As(err, &validation):
		return ExitUsage
	case errors.As(err, &cfgErr):
		return ExitConfig
	default:
		return ExitTestsFailed
	}
}

// exit is replaced in tests.
var exit = os.Exit

// HandleExitError prints err with any suggestion and exits with its code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	exit(writeExitError(os.Stderr, err))
}

func writeExitError(w io.Writer, err error) int {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}
	printUserVisibleSuggestion(w, err)
	return ExitCodeFor(err)
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available.
func printUserVisibleSuggestion(w io.Writer, err error) {
	// Walk the error chain to find a UserVisibleError
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if suggestion := userErr.Suggestion(); suggestion != "" {
					fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
				}
			}
			return
		}
		err = errors.Unwrap(err)
	}
}
