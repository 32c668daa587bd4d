// Package history stores admitted alert events in SQLite so operators
// can inspect what fired recently. Engine state (heartbeats,
// suppression) is deliberately not persisted; it resets on restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/logalert/internal/alerting"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_history (
	id         TEXT PRIMARY KEY,
	rule_id    INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_history_created_at ON alert_history(created_at);
`

// Entry is a stored alert event.
type Entry struct {
	ID        string    `json:"id"`
	RuleID    int       `json:"rule_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the SQLite-backed alert history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// A single writer is enough for an alert stream.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record stores one admitted event.
func (s *Store) Record(ctx context.Context, event *alerting.Event) error {
	query := `
		INSERT INTO alert_history (id, rule_id, kind, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.RuleID, string(event.Kind), event.Message, event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record alert history: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, rule_id, kind, message, created_at
		FROM alert_history ORDER BY created_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RuleID, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Count returns the total number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history").Scan(&total); err != nil {
		return 0, fmt.Errorf("count alert history: %w", err)
	}
	return total, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
