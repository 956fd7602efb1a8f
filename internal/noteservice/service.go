// Package noteservice implements note lifecycle operations. Every mutation
// commits the note row together with its vector outbox events, then hands the
// events to the syncer for a best-effort inline delivery.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/checksum"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/store"
)

// Event kinds passed to the EventSink.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Syncer delivers outbox events to the vector index.
type Syncer interface {
	DeliverAll(ctx context.Context, events []store.OutboxEvent)
}

// EventSink receives note change notifications.
type EventSink interface {
	NoteEvent(kind, userID, noteID string)
}

// CreateInput is the payload of a new note.
type CreateInput struct {
	UserID     string
	Title      string
	Content    string
	Tags       []string
	IsFavorite bool
}

// Service coordinates the record store and the vector outbox.
type Service struct {
	db     store.NoteStore
	sync   Syncer
	events EventSink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes note changes to sink.
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new note service.
func NewService(db store.NoteStore, sync Syncer, opts ...Option) *Service {
	s := &Service{
		db:     db,
		sync:   sync,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new note and indexes it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Note, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, fmt.Errorf("create note: user_id is required: %w", apperr.ErrInvalid)
	}
	title := in.Title
	if title == "" {
		title = models.DefaultNoteTitle
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	n := &models.Note{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Title:      title,
		Content:    in.Content,
		Tags:       models.Tags(tags),
		IsFavorite: in.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var events []store.OutboxEvent
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.InsertNote(ctx, n); err != nil {
			return err
		}
		ev, err := tx.Enqueue(ctx, n.ID, n.UserID, store.OpUpsert, now)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.deliver(ctx, events)
	s.publish(KindCreated, n.UserID, n.ID)
	return n, nil
}

// Get returns one note of userID.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.Note, error) {
	return s.db.GetNote(ctx, id, userID)
}

// List returns the notes matching q. Zero limit and empty filter select the defaults.
func (s *Service) List(ctx context.Context, q models.ListQuery) ([]models.Note, error) {
	if q.FilterType == "" {
		q.FilterType = models.FilterAll
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.db.ListNotes(ctx, q)
}

// Update applies a partial update. The note is re-embedded only when its
// title or content changed since it was last indexed.
func (s *Service) Update(ctx context.Context, id, userID string, p models.NotePatch) (*models.Note, error) {
	now := s.now()
	var (
		merged *models.Note
		events []store.OutboxEvent
	)
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.UpdateNote(ctx, id, userID, p, now); err != nil {
			return err
		}
		n, err := tx.GetNote(ctx, id, userID)
		if err != nil {
			return err
		}
		merged = n
		if checksum.String(n.EmbeddingInput()) == n.EmbeddedChecksum {
			return nil
		}
		ev, err := tx.Enqueue(ctx, n.ID, n.UserID, store.OpUpsert, now)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update note %s: %w", id, err)
	}

	s.deliver(ctx, events)
	s.publish(KindUpdated, userID, id)
	return merged, nil
}

// SoftDelete moves a note to the trash. Its vector entry is kept. A missing
// note is not an error.
func (s *Service) SoftDelete(ctx context.Context, id, userID string) error {
	ok, err := s.db.SetDeleted(ctx, id, userID, true, s.now())
	if err != nil {
		return fmt.Errorf("soft delete note %s: %w", id, err)
	}
	if ok {
		s.publish(KindDeleted, userID, id)
	}
	return nil
}

// HardDelete removes a note and its vector entry. A missing note is not an error.
func (s *Service) HardDelete(ctx context.Context, id, userID string) error {
	now := s.now()
	var (
		removed bool
		events  []store.OutboxEvent
	)
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var err error
		removed, err = tx.DeleteNote(ctx, id, userID)
		if err != nil {
			return err
		}
		ev, err := tx.Enqueue(ctx, id, userID, store.OpDelete, now)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}

	s.deliver(ctx, events)
	if removed {
		s.publish(KindDeleted, userID, id)
	}
	return nil
}

// Restore takes a note out of the trash.
func (s *Service) Restore(ctx context.Context, id, userID string) error {
	ok, err := s.db.SetDeleted(ctx, id, userID, false, s.now())
	if err != nil {
		return fmt.Errorf("restore note %s: %w", id, err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.publish(KindUpdated, userID, id)
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, id, userID string) (bool, error) {
	return s.toggle(ctx, id, userID, store.FlagFavorite)
}

// ToggleArchive flips the archived flag and returns the new value.
func (s *Service) ToggleArchive(ctx context.Context, id, userID string) (bool, error) {
	return s.toggle(ctx, id, userID, store.FlagArchived)
}

func (s *Service) toggle(ctx context.Context, id, userID, flag string) (bool, error) {
	v, err := s.db.ToggleFlag(ctx, id, userID, flag, s.now())
	if err != nil {
		return false, err
	}
	s.publish(KindUpdated, userID, id)
	return v, nil
}

// EmptyTrash permanently deletes every trashed note of userID and returns
// how many were removed.
func (s *Service) EmptyTrash(ctx context.Context, userID string) (int, error) {
	now := s.now()
	var (
		ids    []string
		events []store.OutboxEvent
	)
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		var err error
		ids, err = tx.TrashedIDs(ctx, userID)
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.DeleteNotes(ctx, userID, ids); err != nil {
			return err
		}
		for _, id := range ids {
			ev, err := tx.Enqueue(ctx, id, userID, store.OpDelete, now)
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("empty trash: %w", err)
	}

	s.deliver(ctx, events)
	for _, id := range ids {
		s.publish(KindDeleted, userID, id)
	}
	return len(ids), nil
}

// Reindex schedules every note of userID (all users when empty) to be
// embedded again. It returns the number of notes scheduled.
func (s *Service) Reindex(ctx context.Context, userID string) (int, error) {
	now := s.now()
	n := 0
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		refs, err := tx.NoteRefs(ctx, userID)
		if err != nil {
			return err
		}
		if err := tx.ResetEmbeddedChecksums(ctx, userID); err != nil {
			return err
		}
		for _, ref := range refs {
			if _, err := tx.Enqueue(ctx, ref.ID, ref.UserID, store.OpUpsert, now); err != nil {
				return err
			}
		}
		n = len(refs)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	s.logger.Info("reindex scheduled", "user_id", userID, "notes", n)
	return n, nil
}

// deliver runs the inline sync detached from request cancellation.
func (s *Service) deliver(ctx context.Context, events []store.OutboxEvent) {
	if s.sync == nil || len(events) == 0 {
		return
	}
	s.sync.DeliverAll(context.WithoutCancel(ctx), events)
}

func (s *Service) publish(kind, userID, noteID string) {
	if s.events != nil {
		s.events.NoteEvent(kind, userID, noteID)
	}
}
