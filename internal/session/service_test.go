// ABOUTME: Tests for the session service
// ABOUTME: Verifies id assignment, validation, delegation, and persist-then-broadcast ordering

package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-sessions/internal/store"
)

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_Create_AssignsID(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{WorkingDirectory: "/tmp"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID, "service must assign an id when none is supplied")

	retrieved, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
}

func TestService_Create_KeepsCallerID(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{ID: "my-session", WorkingDirectory: "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "my-session", sess.ID)
}

func TestService_Create_RequiresWorkingDirectory(t *testing.T) {
	svc := New(createTestStore(t), nil)

	_, err := svc.Create(context.Background(), CreateRequest{Name: "no dir"})
	assert.Error(t, err)
}

func TestService_Create_DuplicatePropagates(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{ID: "dup", WorkingDirectory: "/tmp"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{ID: "dup", WorkingDirectory: "/tmp"})
	assert.ErrorIs(t, err, store.ErrDuplicateSession)
}

func TestService_Append_BroadcastsToWatcher(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{WorkingDirectory: "/tmp"})
	require.NoError(t, err)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, _ := svc.Watch(watchCtx, sess.ID)

	appended, err := svc.Append(ctx, sess.ID, map[string]any{"type": "a"})
	require.NoError(t, err)

	select {
	case received := <-ch:
		assert.Equal(t, appended.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast event")
	}

	// And it is durable, not just broadcast
	events, err := svc.Events(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, appended.ID, events[0].ID)
}

func TestService_Append_MissingSessionBroadcastsNothing(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, _ := svc.Watch(watchCtx, "nonexistent")

	_, err := svc.Append(ctx, "nonexistent", map[string]any{"type": "a"})
	require.ErrorIs(t, err, store.ErrSessionNotFound)

	select {
	case evt := <-ch:
		t.Fatalf("unexpected broadcast for failed append: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestService_Delete_Idempotent(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{WorkingDirectory: "/tmp"})
	require.NoError(t, err)

	removed, err := svc.Delete(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestService_Update(t *testing.T) {
	svc := New(createTestStore(t), nil)
	ctx := context.Background()

	sess, err := svc.Create(ctx, CreateRequest{WorkingDirectory: "/tmp", Tags: []string{"x"}})
	require.NoError(t, err)

	name := "renamed"
	updated, err := svc.Update(ctx, sess.ID, store.SessionUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, []string{"x"}, updated.Tags)
}
