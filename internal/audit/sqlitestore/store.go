// Package sqlitestore persists admission decisions to SQLite for later
// review and abuse analysis.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/drawbridge-proxy/drawbridge/internal/gate"
)

// Store implements gate.Recorder backed by a SQLite database.
type Store struct {
	db *sql.DB
}

var _ gate.Recorder = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at   TEXT NOT NULL,
	stage         TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	remote_addr   TEXT NOT NULL,
	virtual_host  TEXT NOT NULL,
	intent        TEXT NOT NULL,
	allowed       INTEGER NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL,
	timed_out     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_decisions_remote_addr ON decisions(remote_addr);
CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at ON decisions(recorded_at);
`

// NewStore opens (creating if needed) the decision store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordDecision implements gate.Recorder.
func (s *Store) RecordDecision(ctx context.Context, rec gate.Record) error {
	query := `
		INSERT INTO decisions
			(recorded_at, stage, connection_id, remote_addr, virtual_host, intent, allowed, reason, duration_ms, timed_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		time.Now().UTC().Format(time.RFC3339),
		rec.Stage,
		rec.ConnectionID,
		rec.RemoteAddr,
		rec.VirtualHost,
		rec.Intent,
		boolToInt(rec.Allowed),
		rec.Reason,
		rec.Duration.Milliseconds(),
		boolToInt(rec.TimedOut),
	)
	if err != nil {
		return fmt.Errorf("failed to store decision: %w", err)
	}
	return nil
}

// DeniedByAddr returns how many denials each remote address has accumulated
// since the given time, most denied first.
func (s *Store) DeniedByAddr(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT remote_addr, COUNT(*) FROM decisions
		WHERE allowed = 0 AND recorded_at >= ?
		GROUP BY remote_addr`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query denials: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var addr string
		var n int
		if err := rows.Scan(&addr, &n); err != nil {
			return nil, fmt.Errorf("failed to scan denial row: %w", err)
		}
		counts[addr] = n
	}
	return counts, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
