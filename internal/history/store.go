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

// Package history keeps a sqlite record of test results across runs, so
// trends and flaky tests can be reported by history id.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	tallyerrors "github.com/tombee/tally/pkg/errors"
	"github.com/tombee/tally/pkg/result"
)

// Store provides sqlite-backed storage for result history.
type Store struct {
	db *sql.DB
}

// Config contains sqlite storage configuration.
type Config struct {
	// Path is the filesystem path to the sqlite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// Entry is one recorded run of a test.
type Entry struct {
	UUID       string             `json:"uuid"`
	HistoryID  string             `json:"history_id"`
	TestCaseID string             `json:"test_case_id"`
	Name       string             `json:"name"`
	FullName   string             `json:"full_name"`
	Status     result.Status      `json:"status"`
	Start      int64              `json:"start"`
	Stop       int64              `json:"stop"`
	Parameters []result.Parameter `json:"parameters,omitempty"`
	Labels     []result.Label     `json:"labels,omitempty"`
	StepCount  int                `json:"step_count"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Duration returns the recorded run time.
func (e *Entry) Duration() time.Duration {
	if e.Stop < e.Start {
		return 0
	}
	return time.Duration(e.Stop-e.Start) * time.Millisecond
}

// Trend is the number of results per status.
type Trend map[result.Status]int

// Total returns the number of results in the trend.
func (t Trend) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// FlakyTest summarizes a history id whose runs both passed and failed.
type FlakyTest struct {
	HistoryID string `json:"history_id"`
	FullName  string `json:"full_name"`
	Runs      int    `json:"runs"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	LastSeen  int64  `json:"last_seen"`
}

// Open opens (creating if needed) the history database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := cfg.Path
	maxConns := cfg.MaxOpenConns
	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		maxConns = 1
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxConns == 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS results (
			uuid TEXT PRIMARY KEY,
			history_id TEXT NOT NULL,
			test_case_id TEXT NOT NULL,
			name TEXT NOT NULL,
			full_name TEXT NOT NULL,
			status TEXT NOT NULL,
			start_ms INTEGER NOT NULL,
			stop_ms INTEGER NOT NULL,
			parameters TEXT,
			labels TEXT,
			steps TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_history_id ON results(history_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_start ON results(start_ms)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// WriteResult stores r, replacing any earlier row with the same uuid.
func (s *Store) WriteResult(ctx context.Context, r *result.Result) error {
	return s.insert(ctx, s.db, r)
}

// WriteContainer is a no-op; the history only tracks results.
func (s *Store) WriteContainer(context.Context, *result.Container) error {
	return nil
}

// WriteAttachment is a no-op; the history only tracks results.
func (s *Store) WriteAttachment(context.Context, string, []byte) error {
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, db execer, r *result.Result) error {
	if r == nil || r.UUID == "" {
		return fmt.Errorf("result uuid is required")
	}

	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	labels, err := json.Marshal(r.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	steps, err := json.Marshal(r.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	historyID := r.HistoryID
	if historyID == "" {
		historyID = result.HistoryID(r.FullName, r.Parameters)
	}
	testCaseID := r.TestCaseID
	if testCaseID == "" {
		testCaseID = result.TestCaseID(r.FullName)
	}

	query := `
		INSERT INTO results (uuid, history_id, test_case_id, name, full_name, status,
			start_ms, stop_ms, parameters, labels, steps, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			history_id = excluded.history_id,
			test_case_id = excluded.test_case_id,
			name = excluded.name,
			full_name = excluded.full_name,
			status = excluded.status,
			start_ms = excluded.start_ms,
			stop_ms = excluded.stop_ms,
			parameters = excluded.parameters,
			labels = excluded.labels,
			steps = excluded.steps
	`

	_, err = db.ExecContext(ctx, query,
		r.UUID, historyID, testCaseID, r.Name, r.FullName, string(r.Status),
		r.Start, r.Stop, string(params), string(labels), string(steps),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	return nil
}

// Import stores many results in a single transaction.
func (s *Store) Import(ctx context.Context, results []*result.Result) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, r := range results {
		if err := s.insert(ctx, tx, r); err != nil {
			return 0, fmt.Errorf("result %d (%s): %w", i, r.FullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return len(results), nil
}

// History returns the runs recorded for historyID, newest first. A limit of
// zero returns every run.
func (s *Store) History(ctx context.Context, historyID string, limit int) ([]*Entry, error) {
	query := `
		SELECT uuid, history_id, test_case_id, name, full_name, status,
			start_ms, stop_ms, parameters, labels, steps, created_at
		FROM results WHERE history_id = ?
		ORDER BY start_ms DESC, created_at DESC
	`
	args := []any{historyID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		return nil, &tallyerrors.NotFoundError{Resource: "history", ID: historyID}
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var entry Entry
	var status string
	var params, labels, steps sql.NullString
	var createdAt int64

	err := rows.Scan(
		&entry.UUID, &entry.HistoryID, &entry.TestCaseID, &entry.Name, &entry.FullName,
		&status, &entry.Start, &entry.Stop, &params, &labels, &steps, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan result: %w", err)
	}

	entry.Status = result.StatusFromString(status)
	entry.CreatedAt = time.UnixMilli(createdAt)

	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &entry.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &entry.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
		}
	}
	if steps.Valid && steps.String != "" {
		var decoded []result.Step
		if err := json.Unmarshal([]byte(steps.String), &decoded); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
		entry.StepCount = (&result.Result{Steps: decoded}).CountSteps()
	}

	return &entry, nil
}

// Trend counts results per status over the most recent limit results. A
// limit of zero counts every result.
func (s *Store) Trend(ctx context.Context, limit int) (Trend, error) {
	query := `SELECT status, COUNT(*) FROM (
		SELECT status FROM results ORDER BY start_ms DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	query += `) GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	trend := Trend{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		trend[result.StatusFromString(status)] += count
	}
	return trend, rows.Err()
}

// Flaky returns history ids with at least minRuns runs that both passed and
// failed (or broke), most runs first.
func (s *Store) Flaky(ctx context.Context, minRuns int) ([]FlakyTest, error) {
	if minRuns < 2 {
		minRuns = 2
	}

	query := `
		SELECT history_id, MAX(full_name), COUNT(*),
			SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status IN ('failed', 'broken') THEN 1 ELSE 0 END),
			MAX(start_ms)
		FROM results
		GROUP BY history_id
		HAVING COUNT(*) >= ?
			AND SUM(CASE WHEN status = 'passed' THEN 1 ELSE 0 END) > 0
			AND SUM(CASE WHEN status IN ('failed', 'broken') THEN 1 ELSE 0 END) > 0
	`

	rows, err := s.db.QueryContext(ctx, query, minRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to query flaky tests: %w", err)
	}
	defer rows.Close()

	var flaky []FlakyTest
	for rows.Next() {
		var f FlakyTest
		if err := rows.Scan(&f.HistoryID, &f.FullName, &f.Runs, &f.Passed, &f.Failed, &f.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan flaky test: %w", err)
		}
		flaky = append(flaky, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(flaky, func(i, j int) bool {
		if flaky[i].Runs != flaky[j].Runs {
			return flaky[i].Runs > flaky[j].Runs
		}
		return flaky[i].FullName < flaky[j].FullName
	})
	return flaky, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
