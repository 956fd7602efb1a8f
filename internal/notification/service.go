// Package notification manages user notifications.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
)

// DefaultLimit is the number of notifications listed when no limit is given.
const DefaultLimit = 20

// Store persists notifications.
type Store interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	InsertNotification(ctx context.Context, n models.Notification) error
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
}

// Publisher is told about new notifications.
type Publisher interface {
	NotificationCreated(n models.Notification)
}

// CreateInput is the payload of a new notification.
type CreateInput struct {
	UserID  string
	Title   string
	Message string
	Type    string
}

// Service lists, creates and acknowledges notifications.
type Service struct {
	db     Store
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a notification service. pub may be nil.
func NewService(db Store, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, pub: pub, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns the newest notifications of userID. Errors yield an empty list.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) []models.Notification {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out, err := s.db.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		s.logger.Warn("list notifications failed", "user_id", userID, "error", err)
		return []models.Notification{}
	}
	return out
}

// Create stores a new unread notification.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("create notification: user_id is required: %w", apperr.ErrInvalid)
	}
	typ := in.Type
	if typ == "" {
		typ = models.NotificationInfo
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      typ,
		CreatedAt: s.now(),
	}
	if err := s.db.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if s.pub != nil {
		s.pub.NotificationCreated(n)
	}
	return &n, nil
}

// MarkRead marks one notification of userID as read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.db.MarkNotificationRead(ctx, id, userID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every notification of userID as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.db.MarkAllNotificationsRead(ctx, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}
