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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	tallyerrors "github.com/tombee/tally/pkg/errors"
	"github.com/tombee/tally/pkg/result"
)

// DefaultPattern matches result files at any depth below a directory.
const DefaultPattern = "**/*" + result.ResultSuffix

// Discover finds result files in paths. Directories are searched with
// pattern (DefaultPattern when empty); files are taken as given. Each file is
// returned once, in path order.
func Discover(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &tallyerrors.ValidationError{
			Field:          "pattern",
			Message:        fmt.Sprintf("invalid glob pattern %q", pattern),
			SuggestionText: "Use doublestar syntax such as **/*-result.json",
		}
	}

	var files []string
	seen := make(map[string]bool)
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		files = append(files, path)
		return nil
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, &tallyerrors.NotFoundError{Resource: "results path", ID: path}
		}

		if !info.IsDir() {
			if !result.IsResultFile(path) {
				return nil, &tallyerrors.ValidationError{
					Field:   "path",
					Message: fmt.Sprintf("file %q is not a result file (*%s)", path, result.ResultSuffix),
				}
			}
			if err := add(path); err != nil {
				return nil, err
			}
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(path), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", path, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := add(filepath.Join(path, filepath.FromSlash(m))); err != nil {
				return nil, err
			}
		}
	}

	if len(files) == 0 {
		return nil, &tallyerrors.NotFoundError{Resource: "results", ID: strings.Join(paths, ", ")}
	}
	return files, nil
}

// Load decodes every file and sorts the results by start time, then name.
func Load(files []string) ([]*result.Result, error) {
	out := make([]*result.Result, 0, len(files))
	for _, f := range files {
		r, err := result.ReadResult(f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	Sort(out)
	return out, nil
}

// LoadPaths discovers and loads the results under paths.
func LoadPaths(paths []string, pattern string) ([]*result.Result, error) {
	files, err := Discover(paths, pattern)
	if err != nil {
		return nil, err
	}
	return Load(files)
}

// Sort orders results by start time, then name.
func Sort(rs []*result.Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return rs[i].Name < rs[j].Name
	})
}
