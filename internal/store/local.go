// Package store persists analyst transcripts in SQLite: sessions, the turns
// asked in them and every progress event those turns produced.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"analyst/internal/logging"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

const timeLayout = time.RFC3339Nano

// LocalStore is the SQLite transcript store. Safe for concurrent use.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	now    func() time.Time
}

// NewLocalStore opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewLocalStore(path string) (*LocalStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	s := &LocalStore{db: db, dbPath: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("transcript store opened at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *LocalStore) Path() string {
	return s.dbPath
}

// initSchema creates the database schema.
func (s *LocalStore) initSchema() error {
	schema := `
	-- One row per conversation
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		closed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	-- Questions and answers, in order
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		query_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		query TEXT NOT NULL,
		answer TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE(session_id, turn_number)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);

	-- Progress events, in emission order per query
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		query_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_query ON events(session_id, query_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	return parseTime(ns.String)
}

// =============================================================================
// SESSIONS
// =============================================================================

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID        string
	Dataset   string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time // zero while open
	Turns     int
}

// CreateSession records a new session. Re-creating an existing ID reopens it.
func (s *LocalStore) CreateSession(ctx context.Context, id, dataset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, dataset, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, closed_at = NULL`,
		id, dataset, now, now,
	)
	if err != nil {
		logging.StoreError("failed to create session %s: %v", id, err)
		return fmt.Errorf("create session: %w", err)
	}
	logging.StoreDebug("session %s recorded (dataset=%s)", id, dataset)
	return nil
}

// CloseSession marks a session closed.
func (s *LocalStore) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET closed_at = ? WHERE id = ?`, formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Session returns one session's summary.
func (s *LocalStore) Session(ctx context.Context, id string) (SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.dataset, s.created_at, s.updated_at, s.closed_at,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s WHERE s.id = ?`, id)
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, ErrSessionNotFound
	}
	return info, err
}

// Sessions lists sessions, most recently active first. limit <= 0 lists all.
func (s *LocalStore) Sessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Sessions")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.dataset, s.created_at, s.updated_at, s.closed_at,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at DESC, s.id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (SessionInfo, error) {
	var info SessionInfo
	var created, updated string
	var closed sql.NullString
	if err := sc.Scan(&info.ID, &info.Dataset, &created, &updated, &closed, &info.Turns); err != nil {
		return SessionInfo{}, err
	}
	info.CreatedAt = parseTime(created)
	info.UpdatedAt = parseTime(updated)
	info.ClosedAt = parseNullTime(closed)
	return info, nil
}
