package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists incidents to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (or creates) a journal database.
// The path should be a file path (e.g., "./incidents.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			role TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL,
			size INTEGER NOT NULL,
			at_unix_nano INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_incidents_at
		ON incidents(at_unix_nano)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, inc Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	inc = normalize(inc)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, kind, role, agent_id, event, detail, size, at_unix_nano)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inc.ID, string(inc.Kind), inc.Role, inc.AgentID, inc.Event, inc.Detail, inc.Size, inc.At.UnixNano())
	if err != nil {
		return fmt.Errorf("record incident: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, role, agent_id, event, detail, size, at_unix_nano
		FROM incidents
		ORDER BY at_unix_nano DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		var kind string
		var at int64
		if err := rows.Scan(&inc.ID, &kind, &inc.Role, &inc.AgentID, &inc.Event, &inc.Detail, &inc.Size, &at); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.Kind = Kind(kind)
		inc.At = time.Unix(0, at).UTC()
		out = append(out, inc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return out, nil
}

// CountByKind implements Store.
func (s *SQLiteStore) CountByKind(ctx context.Context) (map[Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM incidents GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("count incidents: %w", err)
	}
	defer rows.Close()

	counts := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
