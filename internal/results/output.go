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
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tombee/tally/pkg/result"
)

// Output formats.
const (
	FormatHuman = "human"
	FormatJUnit = "junit"
	FormatJSON  = "json"
)

// Write renders rs in format.
func Write(w io.Writer, format string, rs []*result.Result, verbose bool) error {
	switch format {
	case FormatHuman, "":
		return WriteHuman(w, rs, verbose)
	case FormatJUnit:
		return WriteJUnit(w, "tally", rs)
	case FormatJSON:
		return WriteJSON(w, Report{Summary: Summarize(rs), Results: rs})
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// Report is the JSON document written by WriteJSON for a summary.
type Report struct {
	Summary Summary          `json:"summary"`
	Results []*result.Result `json:"results"`
}

// StatusTag returns the short tag shown for a status in human output.
func StatusTag(s result.Status) string {
	switch s {
	case result.StatusPassed:
		return "PASS"
	case result.StatusFailed:
		return "FAIL"
	case result.StatusBroken:
		return "BROKEN"
	case result.StatusSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// WriteHuman writes one block per result followed by the summary. Verbose
// output includes the step tree and parameters.
func WriteHuman(w io.Writer, rs []*result.Result, verbose bool) error {
	for _, r := range rs {
		fmt.Fprintf(w, "[%s] %s (%s)\n", StatusTag(r.Status), r.Name, r.Duration())

		if r.StatusDetails != nil && r.StatusDetails.Message != "" {
			fmt.Fprintf(w, "  Error: %s\n", firstLine(r.StatusDetails.Message))
		}

		if verbose {
			for _, p := range r.Parameters {
				if p.Mode == result.ParameterModeHidden {
					continue
				}
				value := p.Value
				if p.Mode == result.ParameterModeMasked {
					value = result.MaskedValue
				}
				fmt.Fprintf(w, "  Param: %s = %s\n", p.Name, value)
			}
			writeSteps(w, r.Steps, 1)
		}
	}

	if len(rs) > 0 {
		fmt.Fprintln(w)
	}

	s := Summarize(rs)
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Total:   %d\n", s.Total)
	fmt.Fprintf(w, "  Passed:  %d\n", s.Passed)
	fmt.Fprintf(w, "  Failed:  %d\n", s.Failed)
	if s.Broken > 0 {
		fmt.Fprintf(w, "  Broken:  %d\n", s.Broken)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
	}
	if s.Unknown > 0 {
		fmt.Fprintf(w, "  Unknown: %d\n", s.Unknown)
	}
	fmt.Fprintf(w, "  Duration: %s\n", s.Duration)

	return nil
}

func writeSteps(w io.Writer, steps []result.Step, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, st := range steps {
		fmt.Fprintf(w, "%s- [%s] %s (%s)\n", indent, StatusTag(st.Status), st.Name, st.Duration())
		writeSteps(w, st.Steps, depth+1)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// JUnit XML schema types.
type (
	junitProperty struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	}

	junitFailure struct {
		Message string `xml:"message,attr"`
		Type    string `xml:"type,attr"`
		Content string `xml:",chardata"`
	}

	junitTestCase struct {
		Name       string          `xml:"name,attr"`
		Classname  string          `xml:"classname,attr"`
		Time       string          `xml:"time,attr"`
		Properties []junitProperty `xml:"properties>property,omitempty"`
		Failure    *junitFailure   `xml:"failure,omitempty"`
		Error      *junitFailure   `xml:"error,omitempty"`
		Skipped    *struct{}       `xml:"skipped,omitempty"`
	}

	junitTestSuite struct {
		XMLName   xml.Name        `xml:"testsuite"`
		Name      string          `xml:"name,attr"`
		Tests     int             `xml:"tests,attr"`
		Failures  int             `xml:"failures,attr"`
		Errors    int             `xml:"errors,attr"`
		Skipped   int             `xml:"skipped,attr"`
		Time      string          `xml:"time,attr"`
		TestCases []junitTestCase `xml:"testcase"`
	}
)

// WriteJUnit writes rs as a single JUnit XML test suite. Failed results
// become failures, broken results become errors.
func WriteJUnit(w io.Writer, suiteName string, rs []*result.Result) error {
	s := Summarize(rs)
	suite := junitTestSuite{
		Name:      suiteName,
		Tests:     s.Total,
		Failures:  s.Failed,
		Errors:    s.Broken,
		Skipped:   s.Skipped,
		Time:      seconds(s.Duration),
		TestCases: make([]junitTestCase, len(rs)),
	}

	for i, r := range rs {
		tc := junitTestCase{
			Name:      r.Name,
			Classname: classname(r),
			Time:      seconds(r.Duration()),
		}
		for _, p := range r.Parameters {
			switch p.Mode {
			case result.ParameterModeHidden:
			case result.ParameterModeMasked:
				tc.Properties = append(tc.Properties, junitProperty{Name: p.Name, Value: result.MaskedValue})
			default:
				tc.Properties = append(tc.Properties, junitProperty{Name: p.Name, Value: p.Value})
			}
		}

		var message, trace string
		if r.StatusDetails != nil {
			message, trace = r.StatusDetails.Message, r.StatusDetails.Trace
		}

		switch r.Status {
		case result.StatusFailed:
			tc.Failure = &junitFailure{Message: firstLine(message), Type: "AssertionError", Content: joinNonEmpty(message, trace)}
		case result.StatusBroken:
			tc.Error = &junitFailure{Message: firstLine(message), Type: "Panic", Content: joinNonEmpty(message, trace)}
		case result.StatusSkipped:
			tc.Skipped = &struct{}{}
		}

		suite.TestCases[i] = tc
	}

	output, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit XML: %w", err)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write JUnit XML: %w", err)
	}
	if _, err := w.Write(output); err != nil {
		return fmt.Errorf("failed to write JUnit XML: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// classname is the top-level test function, or the suite label when set.
func classname(r *result.Result) string {
	if suite, ok := r.Label("suite"); ok && suite != "" {
		return suite
	}
	name, _, _ := strings.Cut(r.FullName, "/")
	return name
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
