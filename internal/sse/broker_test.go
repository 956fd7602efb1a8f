package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/models"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	assert.Equal(t, 0, b.ClientCount())

	ch := b.Subscribe("u1")
	assert.Equal(t, 1, b.ClientCount())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.ClientCount())
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeNoteCreated, UserID: "u1", Data: map[string]string{"note_id": "a"}})

	select {
	case msg := <-ch:
		s := string(msg)
		assert.Contains(t, s, "event: note.created")
		assert.Contains(t, s, `"note_id":"a"`)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishScopedToUser(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	mine := b.Subscribe("u1")
	defer b.Unsubscribe(mine)
	theirs := b.Subscribe("u2")
	defer b.Unsubscribe(theirs)

	b.Publish(Event{Type: "private", UserID: "u1", Data: map[string]string{}})
	b.Publish(Event{Type: "broadcast", Data: map[string]string{}})

	got := drain(mine)
	require.Len(t, got, 2)
	other := drain(theirs)
	require.Len(t, other, 1)
	assert.Contains(t, other[0], "event: broadcast")
}

func TestNoteEvent_StatsThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	// First event triggers stats.updated, the second one is throttled.
	b.NoteEvent("created", "u1", "a")
	b.NoteEvent("updated", "u1", "b")

	var stats, notes int
	for _, s := range drain(ch) {
		if strings.Contains(s, "stats.updated") {
			stats++
		} else {
			notes++
		}
	}
	assert.Equal(t, 2, notes)
	assert.Equal(t, 1, stats)
}

func TestNoteEvent_ThrottleIsPerUser(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe("u2")
	defer b.Unsubscribe(ch)

	b.NoteEvent("created", "u1", "a")
	b.NoteEvent("deleted", "u2", "b")

	got := drain(ch)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "event: note.deleted")
	assert.Contains(t, got[1], "event: stats.updated")
}

func TestNotificationCreated(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	b.NotificationCreated(models.Notification{ID: "n1", UserID: "u1", Title: "Saved"})

	got := drain(ch)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "event: notification.created")
	assert.Contains(t, got[0], `"title":"Saved"`)
}

type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events?user_id=u1", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	b.Publish(Event{Type: TypeNoteUpdated, UserID: "u1", Data: map[string]string{"note_id": "x"}})
	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), "event: note.updated")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then some more; none of this may block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("u1")
	require.Equal(t, 1, b.ClientCount())

	b.Close()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected subscriber channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.Equal(t, 0, b.ClientCount())

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"note_id": "x"}})
	b.NoteEvent("updated", "u1", "x")
}

func TestFramesCarryIncreasingIDs(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "a", Data: 1})
	b.Publish(Event{Type: "b", Data: 2})

	got := drain(ch)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "id: 1\n"))
	assert.True(t, strings.HasPrefix(got[1], "id: 2\n"))
}

func TestNoteEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("u1")
	defer b.Unsubscribe(ch)

	b.NoteEvent("renamed", "u1", "a")
	assert.Empty(t, drain(ch))
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(w.body(), ": ping")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}
