// Package history keeps an append-only journal of fired commands in SQLite.
//
// The journal records what ran; it is never replayed, so a restart starts
// with an empty delayed queue regardless of what the journal holds.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Source says which dispatch path fired a command.
type Source string

const (
	SourceImmediate Source = "immediate"
	SourceDelayed   Source = "delayed"
)

// Execution is one journal row.
type Execution struct {
	ID      string
	Command string
	Source  Source
	// ScheduledAt is the due time of a delayed task; zero for immediate runs.
	ScheduledAt time.Time
	ExecutedAt  time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id           TEXT PRIMARY KEY,
	command      TEXT NOT NULL,
	source       TEXT NOT NULL,
	scheduled_at INTEGER,
	executed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_executed_at ON executions(executed_at);
`

// Journal is an open history database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path, creating parent directories.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("history: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// The journal is written from the event loop and the delayed executor;
	// a single connection serializes them without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends e. An empty ID is filled with a new UUID.
func (j *Journal) Record(ctx context.Context, e Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var scheduled sql.NullInt64
	if !e.ScheduledAt.IsZero() {
		scheduled = sql.NullInt64{Int64: e.ScheduledAt.UnixMilli(), Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO executions (id, command, source, scheduled_at, executed_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Command, string(e.Source), scheduled, e.ExecutedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("history: record %q: %w", e.Command, err)
	}
	return nil
}

// Recent returns up to limit executions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, command, source, scheduled_at, executed_at FROM executions
		 ORDER BY executed_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var (
			e         Execution
			source    string
			scheduled sql.NullInt64
			executed  int64
		)
		if err := rows.Scan(&e.ID, &e.Command, &source, &scheduled, &executed); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.Source = Source(source)
		if scheduled.Valid {
			e.ScheduledAt = time.UnixMilli(scheduled.Int64)
		}
		e.ExecutedAt = time.UnixMilli(executed)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
