// Package preference stores per-user display settings.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
)

// Store persists preferences.
type Store interface {
	GetPreferences(ctx context.Context, userID string) (*models.Preferences, error)
	UpsertPreferences(ctx context.Context, p models.Preferences) error
}

// Service reads and writes preferences.
type Service struct {
	db     Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a preference service.
func NewService(db Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the saved preferences of userID, or the defaults when none
// are saved or the store cannot be read.
func (s *Service) Get(ctx context.Context, userID string) models.Preferences {
	p, err := s.db.GetPreferences(ctx, userID)
	if err == nil {
		return *p
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("preferences read failed, using defaults", "user_id", userID, "error", err)
	}
	return models.DefaultPreferences()
}

// Update replaces the preferences of userID and returns the stored row.
func (s *Service) Update(ctx context.Context, userID string, p models.Preferences) (models.Preferences, error) {
	now := s.now()
	p.UserID = userID
	p.UpdatedAt = &now
	if err := s.db.UpsertPreferences(ctx, p); err != nil {
		return models.Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	return p, nil
}
