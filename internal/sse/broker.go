// Package sse streams per-user note, notification and stats events to
// browsers over Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/neuralos/internal/models"
)

// Event types.
const (
	TypeNoteCreated         = "note.created"
	TypeNoteUpdated         = "note.updated"
	TypeNoteDeleted         = "note.deleted"
	TypeNotificationCreated = "notification.created"
	TypeStatsUpdated        = "stats.updated"
)

// DefaultHeartbeat is how often an idle stream receives a keepalive comment.
const DefaultHeartbeat = 15 * time.Second

const clientBuffer = 64

// Event is one message on the stream. An empty UserID addresses every client.
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"-"`
	Data   any    `json:"data"`
}

type client struct {
	userID string
	ch     chan []byte
}

// hub is the mutable state owned by the broker goroutine.
type hub struct {
	clients map[chan []byte]*client
	stats   map[string]*rate.Limiter
	seq     uint64
}

func (h *hub) send(e Event) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return
	}
	h.seq++
	frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, e.Type, payload))
	for _, c := range h.clients {
		if e.UserID != "" && c.userID != e.UserID {
			continue
		}
		select {
		case c.ch <- frame:
		default:
			// slow reader, drop
		}
	}
}

// Broker fans events out to subscribed clients. All state lives in a single
// goroutine; callers hand it closures over ops.
type Broker struct {
	statsEvery time.Duration
	heartbeat  time.Duration

	ops     chan func(*hub)
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat overrides DefaultHeartbeat. Non-positive values disable it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

// NewBroker starts a broker that emits at most one stats.updated per user
// every statsThrottle.
func NewBroker(statsThrottle time.Duration, opts ...Option) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}
	b := &Broker{
		statsEvery: statsThrottle,
		heartbeat:  DefaultHeartbeat,
		ops:        make(chan func(*hub), 256),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	h := &hub{
		clients: make(map[chan []byte]*client),
		stats:   make(map[string]*rate.Limiter),
	}
	for {
		select {
		case <-b.stop:
			for ch := range h.clients {
				close(ch)
			}
			return
		case op := <-b.ops:
			op(h)
		}
	}
}

// do queues op for the broker goroutine. It reports false once the broker
// has stopped.
func (b *Broker) do(op func(*hub)) bool {
	select {
	case <-b.stop:
		return false
	default:
	}
	select {
	case b.ops <- op:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the broker and closes every subscriber channel.
func (b *Broker) Close() {
	b.once.Do(func() { close(b.stop) })
	<-b.stopped
}

// Subscribe registers a client for userID. An empty userID only receives
// broadcast events. The channel is closed on Unsubscribe or Close.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	added := make(chan struct{})
	ok := b.do(func(h *hub) {
		h.clients[ch] = &client{userID: userID, ch: ch}
		close(added)
	})
	if !ok {
		close(ch)
		return ch
	}
	select {
	case <-added:
	case <-b.stopped:
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.do(func(h *hub) {
		if _, ok := h.clients[ch]; ok {
			delete(h.clients, ch)
			close(ch)
		}
	})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.do(func(h *hub) { resp <- len(h.clients) }) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends e to the clients it addresses.
func (b *Broker) Publish(e Event) {
	b.do(func(h *hub) { h.send(e) })
}

// NoteEvent publishes a note change followed by a throttled stats.updated
// for the same user. kind is created, updated or deleted.
func (b *Broker) NoteEvent(kind, userID, noteID string) {
	var typ string
	switch kind {
	case "created":
		typ = TypeNoteCreated
	case "updated":
		typ = TypeNoteUpdated
	case "deleted":
		typ = TypeNoteDeleted
	default:
		return
	}
	every := b.statsEvery
	b.do(func(h *hub) {
		h.send(Event{Type: typ, UserID: userID, Data: map[string]string{"note_id": noteID}})

		lim, ok := h.stats[userID]
		if !ok {
			lim = rate.NewLimiter(rate.Every(every), 1)
			h.stats[userID] = lim
		}
		if lim.Allow() {
			h.send(Event{Type: TypeStatsUpdated, UserID: userID, Data: map[string]string{}})
		}
	})
}

// NotificationCreated publishes a new notification to its owner.
func (b *Broker) NotificationCreated(n models.Notification) {
	b.Publish(Event{Type: TypeNotificationCreated, UserID: n.UserID, Data: n})
}

// ServeHTTP streams events for the user named by the user_id query parameter.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("user_id"))
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-beat:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
