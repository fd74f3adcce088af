// ABOUTME: Event log persistence for session history and replay
// ABOUTME: Append-only inserts with atomic session timestamp bumps and ordered reads

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveEvent appends an event to a session's log. The session must exist;
// otherwise ErrSessionNotFound is returned and no event row is created.
// The event insert and the bump of the parent session's updatedAt to the
// same timestamp happen in a single transaction, so the session's
// updatedAt can never lag its latest event.
func (s *SQLiteStore) SaveEvent(ctx context.Context, sessionID string, payload any) (*Event, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding event payload for session %s: %w", sessionID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning event transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("appending event to session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking session %s: %w", sessionID, err)
	}

	now := time.Now().UnixMilli()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO events (sessionId, timestamp, eventData)
		VALUES (?, ?, ?)
	`, sessionID, now, string(data))
	if err != nil {
		return nil, fmt.Errorf("inserting event for session %s: %w", sessionID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting event id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE sessions SET updatedAt = ? WHERE id = ?`, now, sessionID)
	if err != nil {
		return nil, fmt.Errorf("bumping session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing event for session %s: %w", sessionID, err)
	}

	s.logger.Debug("saved event", "event_id", id, "session_id", sessionID)

	return &Event{
		ID:        id,
		SessionID: sessionID,
		Timestamp: time.UnixMilli(now),
		Payload:   payload,
	}, nil
}

// GetSessionEvents returns all events for a session in replay order:
// (timestamp ASC, id ASC), the id breaking ties between events that share
// a millisecond. The session must exist; otherwise ErrSessionNotFound.
//
// Each stored payload is decoded independently. A record whose payload no
// longer parses is replaced with a system-notice placeholder instead of
// failing the whole read; the corruption is logged for diagnosis.
func (s *SQLiteStore) GetSessionEvents(ctx context.Context, sessionID string) ([]*Event, error) {
	db, err := s.ensureReady()
	if err != nil {
		return nil, err
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reading events for session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checking session %s: %w", sessionID, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, eventData
		FROM events
		WHERE sessionId = ?
		ORDER BY timestamp ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var id, timestamp int64
		var data string

		if err := rows.Scan(&id, &timestamp, &data); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		event := &Event{
			ID:        id,
			SessionID: sessionID,
			Timestamp: time.UnixMilli(timestamp),
		}

		if err := json.Unmarshal([]byte(data), &event.Payload); err != nil {
			s.logger.Warn("corrupt event payload, substituting placeholder",
				"event_id", id,
				"session_id", sessionID,
				"error", err,
			)
			*event = placeholderEvent(id, sessionID, err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}

// placeholderEvent builds the system-notice event substituted for a record
// whose stored payload cannot be decoded.
func placeholderEvent(id int64, sessionID string, cause error) Event {
	now := time.UnixMilli(time.Now().UnixMilli())
	return Event{
		ID:        id,
		SessionID: sessionID,
		Timestamp: now,
		Payload: map[string]any{
			"type":      "system",
			"message":   fmt.Sprintf("event %d could not be decoded: %v", id, cause),
			"timestamp": now.UnixMilli(),
		},
	}
}
