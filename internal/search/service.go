// Package search answers natural-language questions over a user's notes.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/neuralos/internal/ai"
	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/vector"
)

// DefaultLimit is the number of notes retrieved when no limit is given.
const DefaultLimit = 5

// LogStore records searches.
type LogStore interface {
	InsertSearchLog(ctx context.Context, l models.SearchLog) error
}

// Service runs semantic search and asks the completion model for insights.
type Service struct {
	index     vector.Index
	embedder  ai.Embedder
	completer ai.Completer
	logs      LogStore
	logger    *slog.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

// NewService creates a search service.
func NewService(index vector.Index, embedder ai.Embedder, completer ai.Completer, logs LogStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:     index,
		embedder:  embedder,
		completer: completer,
		logs:      logs,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Search embeds query, retrieves the closest notes of userID and returns an
// AI answer together with the ranked matches.
func (s *Service) Search(ctx context.Context, query, userID string, limit int) (*models.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: query is required: %w", apperr.ErrInvalid)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	matches, err := s.index.Query(ctx, vec, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(matches) == 0 {
		return &models.Answer{Answer: NoResultsAnswer, Results: []models.SearchResult{}}, nil
	}

	answer, err := s.completer.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: userPrompt(buildContext(matches), query, matches[0].Score)},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			ID:        m.ID,
			Title:     titleOf(m),
			Text:      m.Text,
			Score:     m.Score,
			CreatedAt: m.CreatedAt,
		})
	}

	s.record(ctx, models.SearchLog{
		UserID:       userID,
		Query:        query,
		ResultsCount: len(matches),
		CreatedAt:    s.now(),
	})

	return &models.Answer{Answer: answer, Results: results}, nil
}

// Wait blocks until pending search log writes finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

// record writes the search log in the background. Failures are logged only.
func (s *Service) record(ctx context.Context, entry models.SearchLog) {
	if s.logs == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.logs.InsertSearchLog(ctx, entry); err != nil {
			s.logger.Warn("search log write failed", "user_id", entry.UserID, "error", err)
		}
	}()
}
