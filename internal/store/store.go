package store

import (
	"context"
	"time"

	"github.com/starford/neuralos/internal/models"
)

// NoteStore defines the note operations used by the services.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error
	GetNote(ctx context.Context, id, userID string) (*models.Note, error)
	GetNoteByID(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, q models.ListQuery) ([]models.Note, error)
	SetDeleted(ctx context.Context, id, userID string, deleted bool, now time.Time) (bool, error)
	ToggleFlag(ctx context.Context, id, userID, column string, now time.Time) (bool, error)
	SetEmbeddedChecksum(ctx context.Context, n *models.Note, sum string) (bool, error)
}

// OutboxStore defines the operations the vector relay needs.
type OutboxStore interface {
	ClaimOutbox(ctx context.Context, now, createdBefore time.Time, limit int) ([]OutboxEvent, error)
	CompleteOutbox(ctx context.Context, id int64) error
	FailOutbox(ctx context.Context, id int64, cause error, next time.Time, maxAttempts int) error
}

// StatsStore defines the aggregate reads behind the dashboard summary.
type StatsStore interface {
	CountNotes(ctx context.Context, userID string, f CountFilter) (int, error)
	CountSearchesSince(ctx context.Context, userID string, since time.Time) (int, error)
	RecentCreatedAt(ctx context.Context, userID string, limit int) ([]time.Time, error)
}

// AccountStore defines search log, preference and notification operations.
type AccountStore interface {
	InsertSearchLog(ctx context.Context, l models.SearchLog) error
	GetPreferences(ctx context.Context, userID string) (*models.Preferences, error)
	UpsertPreferences(ctx context.Context, p models.Preferences) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	InsertNotification(ctx context.Context, n models.Notification) error
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ NoteStore    = (*DB)(nil)
	_ OutboxStore  = (*DB)(nil)
	_ StatsStore   = (*DB)(nil)
	_ AccountStore = (*DB)(nil)
)
