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

import "errors"

// Error codes for structured JSON output
const (
	ErrorCodeTestsFailed   = "E101" // Failed or broken results
	ErrorCodeInvalidInput  = "E201" // Invalid flag, filter or query
	ErrorCodeNoResults     = "E301" // No results found
	ErrorCodeInvalidConfig = "E401" // Configuration error
	ErrorCodeInternal      = "E501" // Anything else
)

// ErrorCodeFor maps an error onto its JSON error code
func ErrorCodeFor(err error) string {
	switch ExitCodeFor(err) {
	case ExitSuccess:
		return ""
	case ExitTestsFailed:
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return ErrorCodeTestsFailed
		}
		return ErrorCodeInternal
	case ExitUsage:
		return ErrorCodeInvalidInput
	case ExitNoResults:
		return ErrorCodeNoResults
	case ExitConfig:
		return ErrorCodeInvalidConfig
	default:
		return ErrorCodeInternal
	}
}
