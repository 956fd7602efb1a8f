// Package vectorsync keeps the vector index in step with committed notes by
// delivering outbox events written in the same transaction as each change.
package vectorsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/neuralos/internal/ai"
	"github.com/starford/neuralos/internal/checksum"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/store"
	"github.com/starford/neuralos/internal/vector"
)

// NoteSource loads committed notes.
type NoteSource interface {
	GetNoteByID(ctx context.Context, id string) (*models.Note, error)
	SetEmbeddedChecksum(ctx context.Context, n *models.Note, sum string) (bool, error)
}

// ErrStale means the note changed or vanished while its vector was being
// written. The event stays in the outbox and a later delivery settles it.
var ErrStale = errors.New("vectorsync: note changed during sync")

// ErrBusy means another delivery for the same note is in flight.
var ErrBusy = errors.New("vectorsync: note sync in progress")

// Syncer applies outbox events to the vector index.
type Syncer struct {
	notes    NoteSource
	outbox   store.OutboxStore
	index    vector.Index
	embedder ai.Embedder
	logger   *slog.Logger
	locks    noteLocks
}

// NewSyncer creates a syncer.
func NewSyncer(notes NoteSource, outbox store.OutboxStore, index vector.Index, embedder ai.Embedder, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		notes:    notes,
		outbox:   outbox,
		index:    index,
		embedder: embedder,
		logger:   logger,
		locks:    noteLocks{held: make(map[string]*noteLock)},
	}
}

// Process applies one event to the vector index, waiting for any other
// delivery of the same note to finish first. It is idempotent.
func (s *Syncer) Process(ctx context.Context, ev store.OutboxEvent) error {
	unlock := s.locks.lock(ev.NoteID)
	defer unlock()
	return s.apply(ctx, ev)
}

func (s *Syncer) apply(ctx context.Context, ev store.OutboxEvent) error {
	switch ev.Op {
	case store.OpDelete:
		return s.delete(ctx, ev.NoteID)
	case store.OpUpsert:
		return s.upsert(ctx, ev.NoteID)
	default:
		return fmt.Errorf("vectorsync: unknown op %q", ev.Op)
	}
}

// Deliver processes ev and removes it from the outbox on success. It does
// not wait: if the note is already being synced it returns ErrBusy and
// leaves ev to the relay.
func (s *Syncer) Deliver(ctx context.Context, ev store.OutboxEvent) error {
	unlock, ok := s.locks.tryLock(ev.NoteID)
	if !ok {
		return ErrBusy
	}
	err := s.apply(ctx, ev)
	unlock()
	if err != nil {
		return err
	}
	return s.outbox.CompleteOutbox(ctx, ev.ID)
}

// DeliverAll delivers events in order, logging failures. Undelivered events
// stay in the outbox for the relay.
func (s *Syncer) DeliverAll(ctx context.Context, events []store.OutboxEvent) {
	for _, ev := range events {
		err := s.Deliver(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, ErrBusy):
			s.logger.Debug("note sync in flight, deferring to relay", "note_id", ev.NoteID, "op", ev.Op)
		default:
			s.logger.Warn("inline vector sync failed, relay will retry",
				"note_id", ev.NoteID, "op", ev.Op, "error", err)
		}
	}
}

func (s *Syncer) upsert(ctx context.Context, noteID string) error {
	n, err := s.notes.GetNoteByID(ctx, noteID)
	if err != nil {
		return err
	}
	if n == nil {
		// Removed after the event was written.
		return s.delete(ctx, noteID)
	}

	input := n.EmbeddingInput()
	sum := checksum.String(input)
	if sum == n.EmbeddedChecksum {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, input)
	if err != nil {
		return fmt.Errorf("vectorsync: embed %s: %w", noteID, err)
	}
	if err := s.index.Upsert(ctx, []vector.Entry{{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Text:      n.Content,
		CreatedAt: n.CreatedAt,
		Vector:    vec,
	}}); err != nil {
		return fmt.Errorf("vectorsync: upsert %s: %w", noteID, err)
	}

	// The row may have moved on while we embedded.
	cur, err := s.notes.GetNoteByID(ctx, noteID)
	if err != nil {
		return err
	}
	if cur == nil {
		if err := s.delete(ctx, noteID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s deleted", ErrStale, noteID)
	}
	if checksum.String(cur.EmbeddingInput()) != sum {
		return fmt.Errorf("%w: %s edited", ErrStale, noteID)
	}
	ok, err := s.notes.SetEmbeddedChecksum(ctx, n, sum)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s edited", ErrStale, noteID)
	}
	return nil
}

func (s *Syncer) delete(ctx context.Context, noteID string) error {
	if err := s.index.Delete(ctx, []string{noteID}); err != nil {
		return fmt.Errorf("vectorsync: delete %s: %w", noteID, err)
	}
	return nil
}

// noteLocks serializes deliveries per note id.
type noteLocks struct {
	mu   sync.Mutex
	held map[string]*noteLock
}

type noteLock struct {
	mu   sync.Mutex
	refs int
}

func (l *noteLocks) lock(id string) func() {
	l.mu.Lock()
	nl := l.held[id]
	if nl == nil {
		nl = &noteLock{}
		l.held[id] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()
	return func() { l.release(id, nl) }
}

func (l *noteLocks) tryLock(id string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	nl := l.held[id]
	if nl == nil {
		nl = &noteLock{}
		l.held[id] = nl
	}
	if !nl.mu.TryLock() {
		return nil, false
	}
	nl.refs++
	return func() { l.release(id, nl) }, true
}

func (l *noteLocks) release(id string, nl *noteLock) {
	nl.mu.Unlock()
	l.mu.Lock()
	nl.refs--
	if nl.refs == 0 {
		delete(l.held, id)
	}
	l.mu.Unlock()
}
