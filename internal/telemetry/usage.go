// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

const usageSchema = `
CREATE TABLE IF NOT EXISTS usage (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts          INTEGER NOT NULL,
	model       TEXT NOT NULL,
	api_type    TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	prompt_len  INTEGER NOT NULL,
	answer_len  INTEGER NOT NULL,
	ok          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage(ts);
`

// =============================================================================
// USAGE LOG
// =============================================================================

// Entry is one request accounting row.
type Entry struct {
	Timestamp time.Time
	Model     string
	APIType   string
	Attempts  int
	Duration  time.Duration
	PromptLen int
	AnswerLen int
	OK        bool
}

// Summary aggregates usage over a time range.
type Summary struct {
	Requests      int
	Failures      int
	TotalAttempts int
	AvgDurationMs int64
}

// UsageLog records request accounting rows in SQLite.
type UsageLog struct {
	mu sync.Mutex
	db *sql.DB
}

// DefaultPath returns the default usage database path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shellmind", "usage.db"), nil
}

// Open opens (creating if needed) the usage database at path.
func Open(path string) (*UsageLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &UsageLog{db: db}, nil
}

// Record inserts one accounting row. Errors are logged, not returned: usage
// accounting must never fail a request.
func (u *UsageLog) Record(e Entry) {
	if u == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	_, err := u.db.Exec(
		"INSERT INTO usage (ts, model, api_type, attempts, duration_ms, prompt_len, answer_len, ok) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.Timestamp.Unix(), e.Model, e.APIType, e.Attempts,
		e.Duration.Milliseconds(), e.PromptLen, e.AnswerLen, boolToInt(e.OK),
	)
	if err != nil {
		log.Printf("usage log write failed: %v", err)
	}
}

// Recent returns the newest n entries, newest first.
func (u *UsageLog) Recent(n int) ([]Entry, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rows, err := u.db.Query(
		"SELECT ts, model, api_type, attempts, duration_ms, prompt_len, answer_len, ok FROM usage ORDER BY ts DESC, id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts, durationMs int64
		var ok int
		if err := rows.Scan(&ts, &e.Model, &e.APIType, &e.Attempts, &durationMs, &e.PromptLen, &e.AnswerLen, &ok); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.OK = ok != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize aggregates usage since the given time.
func (u *UsageLog) Summarize(since time.Time) (Summary, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var s Summary
	var avg sql.NullFloat64
	err := u.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(1-ok), 0), COALESCE(SUM(attempts), 0), AVG(duration_ms) FROM usage WHERE ts >= ?",
		since.Unix(),
	).Scan(&s.Requests, &s.Failures, &s.TotalAttempts, &avg)
	if err != nil {
		return Summary{}, err
	}
	if avg.Valid {
		s.AvgDurationMs = int64(avg.Float64)
	}
	return s, nil
}

// Close releases the database handle.
func (u *UsageLog) Close() error {
	if u == nil {
		return nil
	}
	return u.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
