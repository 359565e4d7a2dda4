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

package result

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// TestCaseID identifies a test independently of its parameters.
func TestCaseID(fullName string) string {
	sum := md5.Sum([]byte(fullName))
	return hex.EncodeToString(sum[:])
}

// HistoryID identifies one parametrization of a test across runs. Excluded
// parameters do not contribute, so a timestamp parameter marked excluded does
// not break history.
func HistoryID(fullName string, params []Parameter) string {
	included := make([]Parameter, 0, len(params))
	for _, p := range params {
		if !p.Excluded {
			included = append(included, p)
		}
	}
	sort.SliceStable(included, func(i, j int) bool {
		return included[i].Name < included[j].Name
	})

	var b strings.Builder
	b.WriteString(fullName)
	for _, p := range included {
		b.WriteByte(0)
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
