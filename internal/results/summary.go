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

package results

import (
	"time"

	"github.com/tombee/tally/pkg/result"
)

// Summary counts results by status.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Broken   int           `json:"broken"`
	Skipped  int           `json:"skipped"`
	Unknown  int           `json:"unknown"`
	Duration time.Duration `json:"duration_ns"`

	// Wall is the span from the earliest start to the latest stop.
	Wall time.Duration `json:"wall_ns"`
}

// Summarize counts rs by status. Duration is the sum of result durations.
func Summarize(rs []*result.Result) Summary {
	var s Summary
	var first, last int64

	for _, r := range rs {
		s.Total++
		switch r.Status {
		case result.StatusPassed:
			s.Passed++
		case result.StatusFailed:
			s.Failed++
		case result.StatusBroken:
			s.Broken++
		case result.StatusSkipped:
			s.Skipped++
		default:
			s.Unknown++
		}
		s.Duration += r.Duration()

		if r.Start > 0 && (first == 0 || r.Start < first) {
			first = r.Start
		}
		if r.Stop > last {
			last = r.Stop
		}
	}

	if first > 0 && last > first {
		s.Wall = time.Duration(last-first) * time.Millisecond
	}
	return s
}

// HasFailures reports whether any result failed or broke.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Broken > 0
}
