// Package session provides the high-level session service over the store.
//
// # Overview
//
// The session package sits between frontends (CLI, future transports) and
// the store, providing session-level abstractions: id assignment, input
// validation, and live event broadcasting.
//
// # Service
//
// The Service coordinates session operations:
//
//	svc := session.New(store, logger)
//
// Key operations:
//
//   - Create(ctx, req): Create a session, assigning a UUID when no id is given
//   - Get / List / Update / Delete: Session metadata lifecycle
//   - Append(ctx, id, payload): Persist an event, then broadcast it
//   - Events(ctx, id): Full log in replay order
//   - Watch(ctx, id): Live subscription to appended events
//
// # Persistence first
//
// Append writes the event to the store before publishing it to watchers.
// Watchers only ever see durable events; a store failure means nothing is
// broadcast.
//
// # Event Broadcasting
//
// The Broadcaster provides in-memory fan-out per session id:
//
//   - Buffered per-watcher channels (64 events)
//   - Non-blocking publish: slow watchers drop events rather than stall
//     the writer
//   - Automatic unsubscribe on context cancellation
//
// The broadcaster holds no durable state; missed events are recoverable
// through Events.
package session
