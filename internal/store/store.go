// ABOUTME: Store interface and data types for fold-sessions persistence
// ABOUTME: Defines Session, Event structs and the error taxonomy for database operations

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned by operations that require an existing
// session (update, append, event reads) when the session does not exist.
// GetSession is the one exception: it is an existence probe and reports
// absence as (nil, nil), not as an error.
var ErrSessionNotFound = errors.New("session not found")

// ErrDuplicateSession is returned when creating a session whose id is
// already in use.
var ErrDuplicateSession = errors.New("session already exists")

// InitError reports a fatal failure to initialize the store: the containing
// directory could not be created or the database file could not be opened.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing session store at %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Session represents one agent conversation context with its metadata.
type Session struct {
	ID               string
	Name             string   // optional display label, empty when unset
	WorkingDirectory string   // execution context path, required
	Tags             []string // optional ordered labels, nil when unset
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionUpdate describes a sparse metadata update. Nil fields are left
// untouched; set fields replace the stored value. Tags uses a pointer to
// slice so callers can distinguish "leave alone" (nil pointer) from
// "clear" (pointer to nil/empty slice).
type SessionUpdate struct {
	Name             *string
	WorkingDirectory *string
	Tags             *[]string
}

// Event is one immutable record in a session's ordered log. ID is assigned
// by the database (monotonically increasing across the whole store) and
// breaks ties between events sharing a millisecond timestamp.
type Event struct {
	ID        int64
	SessionID string
	Timestamp time.Time
	Payload   any // opaque JSON-serializable value, round-tripped verbatim
}

// SessionStore defines the interface for session and event persistence
type SessionStore interface {
	CreateSession(ctx context.Context, sess *Session) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, id string, upd SessionUpdate) (*Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)

	// Event log (append-only, replay order)
	SaveEvent(ctx context.Context, sessionID string, payload any) (*Event, error)
	GetSessionEvents(ctx context.Context, sessionID string) ([]*Event, error)

	// Close releases any resources held by the store
	Close() error
}
