// Package store provides persistent storage for fold-sessions using SQLite.
//
// # Architecture
//
// The store persists two record families:
//
//   - Session: one agent conversation context with its metadata
//   - Event: one immutable record in a session's append-only log
//
// SQLiteStore implements the SessionStore interface. It owns a single
// long-lived database handle with an explicit lifecycle: the store is
// Closed until first use, becomes Ready lazily (any operation triggers
// initialization, or call Open eagerly), and returns to Closed on Close.
// The handle is never exposed as ambient global state; callers obtain a
// store and pass it explicitly.
//
// # Ordering
//
// Events within a session form a total order defined by
// (timestamp ASC, id ASC). The auto-incremented id is unique across the
// whole store and breaks ties between events sharing a millisecond
// timestamp, so replay order is deterministic.
//
// # Referential integrity
//
// Every event references an existing session; appends against a missing
// session fail with ErrSessionNotFound and write nothing. Deleting a
// session cascades to its events atomically, so orphaned events cannot
// persist.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// Schema creation is idempotent (CREATE ... IF NOT EXISTS); re-opening an
// already-initialized database never fails or duplicates structures.
//
// Database file locations:
//
//   - Default: $XDG_DATA_HOME/fold-sessions/sessions.db
//     (falling back to ~/.local/share/fold-sessions/sessions.db)
//   - Testing: a file under t.TempDir()
//
// # Error Handling
//
// Common errors:
//
//   - ErrSessionNotFound: operation requires a session that does not exist
//   - ErrDuplicateSession: session id already in use
//   - *InitError: directory or database file unavailable (fatal)
//
// GetSession is an existence probe and reports absence as (nil, nil).
// Corrupt event payloads are never surfaced as errors: the affected record
// is replaced with a system-notice placeholder on read and logged, so one
// bad row never fails retrieval of the rest of the log.
//
// All methods accept context.Context for cancellation support.
package store
