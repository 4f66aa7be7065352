// Package audit keeps a local SQLite log of bridge invocations: which
// operation ran, how long it took, and how it ended. It records nothing the
// host application owns — no message data, no account state — so the
// bridge stays cache-free.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	id          TEXT PRIMARY KEY,
	operation   TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
`

// Entry is one recorded invocation.
type Entry struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
}

// Log is the invocation log backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Record stores one invocation. The entry id is assigned here.
func (l *Log) Record(e Entry) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(`
		INSERT INTO invocations (id, operation, started_at, duration_ms, status, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.Operation, e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Milliseconds(), e.Status, e.Detail)
	if err != nil {
		return "", fmt.Errorf("failed to record invocation: %w", err)
	}
	return id, nil
}

// Recent returns the most recent invocations, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(`
		SELECT id, operation, started_at, duration_ms, status, detail
		FROM invocations
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started string
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Operation, &started, &durationMS, &e.Status, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			e.StartedAt = t
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
