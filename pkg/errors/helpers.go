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

package errors

import (
	"errors"
	"fmt"
)

// Wrap adds context to an error. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// New creates a plain error.
func New(message string) error {
	return errors.New(message)
}

// UserVisibleError is an error whose message is written for the person
// running the tests or the CLI. The CLI prints UserMessage and Suggestion
// instead of the full wrapped chain.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	// Suggestion is a next step for the user, or empty.
	Suggestion() string
}

var (
	_ UserVisibleError = (*ValidationError)(nil)
	_ UserVisibleError = (*NotFoundError)(nil)
	_ UserVisibleError = (*ConfigError)(nil)
)

// SuggestionFor walks the chain of err and returns the suggestion of the first
// UserVisibleError it finds.
func SuggestionFor(err error) string {
	var uv UserVisibleError
	if !errors.As(err, &uv) || !uv.IsUserVisible() {
		return ""
	}
	return uv.Suggestion()
}
