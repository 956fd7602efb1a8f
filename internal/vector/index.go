// Package vector stores note embeddings and answers nearest-neighbour queries.
package vector

import (
	"context"
	"time"
)

// Entry is one note embedding with the metadata returned by queries.
type Entry struct {
	ID        string
	UserID    string
	Title     string
	Text      string
	CreatedAt time.Time
	Vector    []float32
}

// Match is a query hit. Higher scores are more similar.
type Match struct {
	ID        string
	UserID    string
	Title     string
	Text      string
	CreatedAt string
	Score     float64
}

// Index is a vector store keyed by note id.
type Index interface {
	// Upsert inserts or replaces entries by id.
	Upsert(ctx context.Context, entries []Entry) error
	// Delete removes entries. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error
	// Query returns up to topK entries of userID ordered by descending score.
	Query(ctx context.Context, vec []float32, userID string, topK int) ([]Match, error)
	Close() error
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
