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
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/tombee/tally/pkg/result"
	"golang.org/x/term"
)

// CLI style colors using lipgloss
var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// StatusBroken styles broken results
	StatusBroken = lipgloss.NewStyle().Foreground(lipgloss.Color("205")) // magenta

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Bold styles emphasized text
	Bold = lipgloss.NewStyle().Bold(true)

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

// Symbols for status indicators
const (
	SymbolOK     = "✓"
	SymbolWarn   = "⚠"
	SymbolError  = "✗"
	SymbolBroken = "!"
	SymbolInfo   = "•"
)

// ColorEnabled reports whether output to w should be styled. Styling is off
// under --no-color or NO_COLOR, for a dumb or unset TERM, and when w is not a
// terminal.
func ColorEnabled(w io.Writer) bool {
	if GetNoColor() || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" || t == "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Styler renders with lipgloss styles, or as plain text when color is off.
type Styler struct {
	color bool
}

// NewStyler creates a Styler for output written to w.
func NewStyler(w io.Writer) Styler {
	return Styler{color: ColorEnabled(w)}
}

// Render applies style to s when color is enabled.
func (s Styler) Render(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}

// Status renders the status symbol for a result status.
func (s Styler) Status(status result.Status) string {
	switch status {
	case result.StatusPassed:
		return s.Render(StatusOK, SymbolOK)
	case result.StatusFailed:
		return s.Render(StatusError, SymbolError)
	case result.StatusBroken:
		return s.Render(StatusBroken, SymbolBroken)
	case result.StatusSkipped:
		return s.Render(StatusWarn, SymbolWarn)
	default:
		return s.Render(Muted, SymbolInfo)
	}
}

// RenderOK renders a success message with green checkmark
func (s Styler) RenderOK(msg string) string {
	return s.Render(StatusOK, SymbolOK) + " " + msg
}

// RenderError renders an error message with red X
func (s Styler) RenderError(msg string) string {
	return s.Render(StatusError, SymbolError) + " " + msg
}

// RenderLabel renders a dim label (for key: value pairs)
func (s Styler) RenderLabel(label string) string {
	return s.Render(Muted, label)
}
