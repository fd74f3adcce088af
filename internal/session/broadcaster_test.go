// ABOUTME: Tests for the Broadcaster fan-out pub/sub system
// ABOUTME: Covers subscribe, publish, unsubscribe, context cancellation, concurrency

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/fold-sessions/internal/store"
)

func makeEvent(id int64, sessionID string) *store.Event {
	return &store.Event{
		ID:        id,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"type": "message"},
	}
}

func TestBroadcaster_SingleWatcherReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "s1")

	b.Publish("s1", makeEvent(1, "s1"), "")

	select {
	case received := <-ch:
		assert.Equal(t, int64(1), received.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleWatchersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "s1")
	ch2, _ := b.Subscribe(ctx, "s1")
	ch3, _ := b.Subscribe(ctx, "s1")

	b.Publish("s1", makeEvent(2, "s1"), "")

	for i, ch := range []<-chan *store.Event{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, int64(2), received.ID, "watcher %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("watcher %d timed out", i)
		}
	}
}

func TestBroadcaster_SessionIsolation(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "s1")
	ch2, _ := b.Subscribe(t.Context(), "s2")

	b.Publish("s1", makeEvent(3, "s1"), "")

	select {
	case received := <-ch1:
		assert.Equal(t, int64(3), received.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-ch2:
		t.Fatalf("watcher of other session received event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_ExcludeOriginator(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	chOrigin, originID := b.Subscribe(ctx, "s1")
	chOther, _ := b.Subscribe(ctx, "s1")

	b.Publish("s1", makeEvent(4, "s1"), originID)

	select {
	case received := <-chOther:
		assert.Equal(t, int64(4), received.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-chOrigin:
		t.Fatalf("originator received its own event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background(), "s1")
	b.Unsubscribe("s1", subID)

	_, open := <-ch
	assert.False(t, open, "channel must be closed after unsubscribe")

	// Unsubscribing again must be harmless
	b.Unsubscribe("s1", subID)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "s1")

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel must close after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancellation")
	}
}

func TestBroadcaster_SlowWatcherDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, _ = b.Subscribe(t.Context(), "s1")

	// Publish past the buffer; must not block
	done := make(chan struct{})
	go func() {
		for i := range subscriberBufferSize + 10 {
			b.Publish("s1", makeEvent(int64(i), "s1"), "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full watcher channel")
	}
}

func TestBroadcaster_ConcurrentSubscribePublish(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			ch, _ := b.Subscribe(ctx, "s1")
			select {
			case <-ch:
			case <-time.After(10 * time.Millisecond):
			}
			cancel()
		}()
		go func(n int) {
			defer wg.Done()
			b.Publish("s1", makeEvent(int64(n), "s1"), "")
		}(i)
	}
	wg.Wait()
}
