// ABOUTME: Session service layering id assignment, validation, and event fan-out over the store
// ABOUTME: All session and event operations flow through here - persistence first, then broadcast

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/fold-sessions/internal/store"
)

// SessionStore defines what the service needs from storage
type SessionStore interface {
	CreateSession(ctx context.Context, sess *store.Session) (*store.Session, error)
	GetSession(ctx context.Context, id string) (*store.Session, error)
	ListSessions(ctx context.Context) ([]*store.Session, error)
	UpdateSession(ctx context.Context, id string, upd store.SessionUpdate) (*store.Session, error)
	DeleteSession(ctx context.Context, id string) (bool, error)

	SaveEvent(ctx context.Context, sessionID string, payload any) (*store.Event, error)
	GetSessionEvents(ctx context.Context, sessionID string) ([]*store.Event, error)
}

// Service is the session layer consumed by frontends. It assigns ids,
// validates input, delegates persistence to the store, and fans persisted
// events out to live watchers.
type Service struct {
	store       SessionStore
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// New creates a session service. Pass nil logger for the default.
func New(st SessionStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		broadcaster: NewBroadcaster(logger),
		logger:      logger.With("component", "session"),
	}
}

// CreateRequest contains the fields for creating a session. ID is optional;
// a UUID is assigned when empty. WorkingDirectory is required.
type CreateRequest struct {
	ID               string
	Name             string
	WorkingDirectory string
	Tags             []string
}

// Create creates a new session, assigning a UUID when no id is supplied.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Session, error) {
	if req.WorkingDirectory == "" {
		return nil, fmt.Errorf("working_directory is required")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	sess, err := s.store.CreateSession(ctx, &store.Session{
		ID:               id,
		Name:             req.Name,
		WorkingDirectory: req.WorkingDirectory,
		Tags:             req.Tags,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created session", "id", sess.ID, "working_directory", sess.WorkingDirectory)
	return sess, nil
}

// Get retrieves a session by id, nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*store.Session, error) {
	return s.store.GetSession(ctx, id)
}

// List returns all sessions, most recently active first.
func (s *Service) List(ctx context.Context) ([]*store.Session, error) {
	return s.store.ListSessions(ctx)
}

// Update applies a sparse metadata update and returns the merged session.
func (s *Service) Update(ctx context.Context, id string, upd store.SessionUpdate) (*store.Session, error) {
	sess, err := s.store.UpdateSession(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("updated session", "id", id)
	return sess, nil
}

// Delete removes a session and its events. Returns true if a session was
// actually removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.DeleteSession(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("deleted session", "id", id)
	}
	return removed, nil
}

// Append persists an event to the session's log and then publishes it to
// live watchers. Persistence comes first: an event is broadcast only after
// it is durable.
func (s *Service) Append(ctx context.Context, sessionID string, payload any) (*store.Event, error) {
	event, err := s.store.SaveEvent(ctx, sessionID, payload)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(sessionID, event, "")
	return event, nil
}

// Events returns the session's full log in replay order.
func (s *Service) Events(ctx context.Context, sessionID string) ([]*store.Event, error) {
	return s.store.GetSessionEvents(ctx, sessionID)
}

// Watch subscribes to events appended to the session after this call. The
// subscription ends when ctx is cancelled.
func (s *Service) Watch(ctx context.Context, sessionID string) (<-chan *store.Event, string) {
	return s.broadcaster.Subscribe(ctx, sessionID)
}
