// Package stats builds the per-user dashboard summary.
package stats

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/store"
	"github.com/starford/neuralos/internal/streak"
)

// streakWindow is how many of the newest notes feed the streak.
const streakWindow = 30

// Service aggregates note and search counts.
type Service struct {
	db     store.StatsStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a stats service.
func NewService(db store.StatsStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the summary for userID. Each figure is computed independently
// and falls back to zero on failure, so Get never fails.
func (s *Service) Get(ctx context.Context, userID string) models.UserStats {
	var (
		out      models.UserStats
		searches int
	)
	weekAgo := s.now().Add(-7 * 24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	run := func(field string, fn func(ctx context.Context) (int, error), dst *int) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				s.logger.Warn("stats query failed", "field", field, "user_id", userID, "error", err)
				return nil
			}
			*dst = n
			return nil
		})
	}

	run("total_notes", func(ctx context.Context) (int, error) {
		return s.db.CountNotes(ctx, userID, store.CountFilter{})
	}, &out.TotalNotes)
	run("favorites_count", func(ctx context.Context) (int, error) {
		return s.db.CountNotes(ctx, userID, store.CountFilter{Favorite: true})
	}, &out.FavoritesCount)
	run("archived_count", func(ctx context.Context) (int, error) {
		return s.db.CountNotes(ctx, userID, store.CountFilter{Archived: true})
	}, &out.ArchivedCount)
	run("searches_this_week", func(ctx context.Context) (int, error) {
		return s.db.CountSearchesSince(ctx, userID, weekAgo)
	}, &searches)
	run("streak", func(ctx context.Context) (int, error) {
		times, err := s.db.RecentCreatedAt(ctx, userID, streakWindow)
		if err != nil {
			return 0, err
		}
		return streak.Calculate(times), nil
	}, &out.Streak)

	_ = g.Wait()

	out.SearchesThisWeek = searches
	// Every search produces one AI insight.
	out.AIInsights = searches
	return out
}
