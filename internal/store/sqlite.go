// ABOUTME: SQLite implementation of the SessionStore interface using modernc.org/sqlite
// ABOUTME: Provides session persistence with lazy, idempotent schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the SessionStore interface using SQLite.
//
// The store has two states: Closed (no file handle) and Ready. Construction
// never touches the disk; every public operation transitions the store to
// Ready on first use, so callers may use a freshly constructed store
// without calling Open first. Close returns the store to Closed.
type SQLiteStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	db *sql.DB // nil while Closed
}

// NewSQLiteStore creates a store for the database at the given path without
// opening it. If path is empty, a default under the user data directory is
// used (see DefaultPath). The file and its schema are created lazily on
// first use, or eagerly via Open.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, &InitError{Path: path, Err: err}
		}
	}

	return &SQLiteStore{
		path:   path,
		logger: slog.Default().With("component", "store"),
	}, nil
}

// DefaultPath returns the default database location:
// $XDG_DATA_HOME/fold-sessions/sessions.db, falling back to
// ~/.local/share/fold-sessions/sessions.db.
func DefaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "fold-sessions", "sessions.db"), nil
}

// Path returns the resolved database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Open transitions the store to Ready: it creates the parent directory,
// opens the database file, and ensures the schema exists. Open is
// idempotent; calling it on an already-open store is a no-op. It returns
// an *InitError if the directory cannot be created or the file cannot be
// opened.
func (s *SQLiteStore) Open() error {
	_, err := s.ensureReady()
	return err
}

// ensureReady opens the database on first use and returns the live handle.
// All public operations go through here rather than failing when the store
// has not been explicitly opened.
func (s *SQLiteStore) ensureReady() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &InitError{Path: s.path, Err: fmt.Errorf("creating database directory: %w", err)}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, &InitError{Path: s.path, Err: fmt.Errorf("opening database: %w", err)}
	}

	// Single engine connection: the per-connection pragmas below then hold
	// for every operation, and WAL still serves concurrent readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL for concurrent readers under a single writer
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, &InitError{Path: s.path, Err: fmt.Errorf("applying %s: %w", pragma, err)}
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, &InitError{Path: s.path, Err: fmt.Errorf("creating schema: %w", err)}
	}

	s.db = db
	s.logger.Info("session store ready", "path", s.path)
	return s.db, nil
}

// createSchema creates the database tables if they don't exist
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			createdAt INTEGER NOT NULL,
			updatedAt INTEGER NOT NULL,
			name TEXT,
			workingDirectory TEXT NOT NULL,
			tags TEXT
		);

		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sessionId TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			eventData TEXT NOT NULL,
			FOREIGN KEY (sessionId) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_events_session
			ON events(sessionId);

		CREATE INDEX IF NOT EXISTS idx_events_session_timestamp
			ON events(sessionId, timestamp, id);
	`

	_, err := db.Exec(schema)
	return err
}

// Close releases the database handle and returns the store to Closed.
// Safe to call when already closed or never opened.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	s.logger.Info("closing session store")
	err := s.db.Close()
	s.db = nil
	return err
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateSession inserts a new session. The id must be caller-supplied and
// unique; zero CreatedAt/UpdatedAt default to the current time. Returns the
// fully populated record with defaults applied, or ErrDuplicateSession if
// the id is already in use.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	if sess.ID == "" {
		return nil, fmt.Errorf("creating session: id is required")
	}
	if sess.WorkingDirectory == "" {
		return nil, fmt.Errorf("creating session %s: working directory is required", sess.ID)
	}

	out := *sess
	now := time.Now()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = out.CreatedAt
	}
	// Normalize to the persisted millisecond precision
	out.CreatedAt = time.UnixMilli(out.CreatedAt.UnixMilli())
	out.UpdatedAt = time.UnixMilli(out.UpdatedAt.UnixMilli())

	tags, err := encodeTags(out.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags for session %s: %w", out.ID, err)
	}

	query := `
		INSERT INTO sessions (id, createdAt, updatedAt, name, workingDirectory, tags)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		out.ID,
		out.CreatedAt.UnixMilli(),
		out.UpdatedAt.UnixMilli(),
		nullString(out.Name),
		out.WorkingDirectory,
		tags,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("inserting session %s: %w", out.ID, err)
	}

	s.logger.Debug("created session", "id", out.ID, "working_directory", out.WorkingDirectory)
	return &out, nil
}

// GetSession retrieves a session by id. Absence is a normal outcome for
// callers probing existence, so a missing session is reported as (nil, nil)
// rather than an error.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, createdAt, updatedAt, name, workingDirectory, tags
		FROM sessions
		WHERE id = ?
	`

	sess, err := scanSession(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}

	return sess, nil
}

// ListSessions returns every session ordered by most recent activity first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*Session, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, createdAt, updatedAt, name, workingDirectory, tags
		FROM sessions
		ORDER BY updatedAt DESC, id ASC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

// UpdateSession applies a sparse metadata update: only the set fields of
// upd replace stored values, everything else is left untouched. UpdatedAt
// always advances to the current time, even for an empty update. Returns
// the merged record, or ErrSessionNotFound if the session does not exist.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, upd SessionUpdate) (*Session, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, createdAt, updatedAt, name, workingDirectory, tags
		FROM sessions
		WHERE id = ?
	`

	sess, err := scanSession(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("updating session %s: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s for update: %w", id, err)
	}

	if upd.Name != nil {
		sess.Name = *upd.Name
	}
	if upd.WorkingDirectory != nil {
		sess.WorkingDirectory = *upd.WorkingDirectory
	}
	if upd.Tags != nil {
		sess.Tags = *upd.Tags
	}
	sess.UpdatedAt = time.UnixMilli(time.Now().UnixMilli())

	tags, err := encodeTags(sess.Tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags for session %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET name = ?, workingDirectory = ?, tags = ?, updatedAt = ?
		WHERE id = ?
	`,
		nullString(sess.Name),
		sess.WorkingDirectory,
		tags,
		sess.UpdatedAt.UnixMilli(),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update for session %s: %w", id, err)
	}

	s.logger.Debug("updated session", "id", id)
	return sess, nil
}

// DeleteSession removes a session and, through the cascading foreign key,
// all its events in one atomic unit. Returns true if a session was removed,
// false if the id did not exist. Deleting a missing session is not an error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	db, err := s.ensureReady()
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return false, nil
	}

	s.logger.Debug("deleted session", "id", id)
	return true, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var createdAt, updatedAt int64
	var name, tags sql.NullString

	err := row.Scan(&sess.ID, &createdAt, &updatedAt, &name, &sess.WorkingDirectory, &tags)
	if err != nil {
		return nil, err
	}

	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.UpdatedAt = time.UnixMilli(updatedAt)
	if name.Valid {
		sess.Name = name.String
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &sess.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}

	return &sess, nil
}

// encodeTags serializes tags to their JSON column encoding; nil tags are
// stored as NULL.
func encodeTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// nullString returns nil for empty strings, otherwise the string value
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements SessionStore interface
var _ SessionStore = (*SQLiteStore)(nil)
