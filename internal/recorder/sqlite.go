package recorder

// sqlite.go — write-only audit sink for activity events. Nothing here is
// ever read back by the bot; the table exists for offline analysis while
// runtime state stays in-memory.

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    at        DATETIME NOT NULL,
    kind      TEXT     NOT NULL,
    message   TEXT     NOT NULL,
    detail    TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_at   ON events(at DESC);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
`

// SQLiteRecorder implements ports.Recorder over a local database file.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and applies the schema.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: apply schema: %w", err)
	}

	slog.Info("recorder: opened", "path", path)
	return &SQLiteRecorder{db: db}, nil
}

// RecordEvent appends one event row.
func (r *SQLiteRecorder) RecordEvent(at time.Time, kind, message, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(
		`INSERT INTO events (at, kind, message, detail) VALUES (?, ?, ?, ?)`,
		at.UTC(), kind, message, detail,
	)
	if err != nil {
		return fmt.Errorf("recorder: insert event: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
