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

package tally

import (
	"regexp"
	"strings"

	"github.com/tombee/tally/pkg/result"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// interpolate replaces {name} placeholders with parameter values. Masked and
// hidden parameters render as the masked value. Unknown placeholders stay.
func interpolate(title string, params []result.Parameter) string {
	if !strings.Contains(title, "{") {
		return title
	}
	return placeholderPattern.ReplaceAllStringFunc(title, func(m string) string {
		name := strings.TrimSpace(m[1 : len(m)-1])
		for _, p := range params {
			if p.Name != name {
				continue
			}
			if p.Mode == result.ParameterModeMasked || p.Mode == result.ParameterModeHidden {
				return result.MaskedValue
			}
			return p.Value
		}
		return m
	})
}
