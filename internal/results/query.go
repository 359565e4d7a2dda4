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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
	"github.com/tombee/tally/pkg/result"
)

// DefaultQueryTimeout bounds a single query.
const DefaultQueryTimeout = 5 * time.Second

// Query runs a jq expression over the results, presented as a JSON array of
// Allure result objects. A single output value is returned as is; several are
// returned as a slice.
func Query(ctx context.Context, expression string, rs []*result.Result, timeout time.Duration) (any, error) {
	if timeout == 0 {
		timeout = DefaultQueryTimeout
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	input, err := toJSONValue(rs)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	iter := code.RunWithContext(execCtx, input)
	var out []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if execCtx.Err() != nil {
				return nil, fmt.Errorf("execution timeout after %v", timeout)
			}
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, err
		}
		out = append(out, v)
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

// ValidateQuery parses and compiles expression.
func ValidateQuery(expression string) error {
	query, err := gojq.Parse(expression)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(query); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

// toJSONValue converts results into the generic values gojq operates on.
func toJSONValue(rs []*result.Result) (any, error) {
	if rs == nil {
		rs = []*result.Result{}
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return v, nil
}
