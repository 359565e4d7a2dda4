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

// Package tally annotates Go tests with report metadata and writes one report
// record per test invocation in the Allure 2 results format.
//
// # Quick Start
//
// Install a reporter in TestMain so records are written to the results
// directory named by results_dir in tally.yaml, TALLY_RESULTS_DIR or
// ALLURE_RESULTS_DIR. When none is set, records are kept in memory and nothing
// is written to disk:
//
//	func TestMain(m *testing.M) {
//		os.Exit(tally.Run(m))
//	}
//
// Annotate a test with a title, parameters and steps:
//
//	func TestCheckout(t *testing.T) {
//		tally.Title(t, "Checkout with saved card")
//		tally.Parameter(t, "region", "eu-west-1")
//
//		tally.Step(t, "Open cart", func() {
//			// ...
//		})
//	}
//
// # Parametrized tests
//
// Parametrize runs one subtest per value and records each value as a report
// parameter:
//
//	tally.Parametrize(t, "test_param", []string{"First namex", "Second namex"},
//		func(t *testing.T, testParam string) {
//			tally.Step(t, "Test parameter: "+testParam, func() {})
//		},
//		tally.IDs("first", "second"),
//		tally.WithTitle("test_allure_parametrized_test -- [{test_param}]"),
//	)
//
// Several argument names decompose each value by struct field or slice
// element:
//
//	type env struct{ Version, Name string }
//	tally.Parametrize(t, "system_version, environment_name",
//		[]env{{"Redhat 20.04", "Prod"}}, body)
//
// # Fixtures
//
// A Fixture produces a value for a test, optionally once per parameter. Setup
// and teardown are recorded as before and after fixture results:
//
//	var db = tally.NewFixture("db", []string{"sqlite", "postgres"},
//		func(req *tally.Request[string]) *sql.DB {
//			conn := open(req.Param)
//			req.Cleanup(func() { conn.Close() })
//			return conn
//		})
//
//	func TestQuery(t *testing.T) {
//		tally.Use(t, db, func(t *testing.T, conn *sql.DB) { ... })
//	}
//
// # Steps
//
// Steps never change control flow. A panic inside a step marks it broken and
// continues to unwind. t.FailNow and t.SkipNow mark it failed or skipped.
package tally
