package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Index using exact cosine similarity.
// It is meant for local development and tests.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]Entry
}

// NewMemory returns an empty index. A dim of 0 accepts any vector length.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, entries: make(map[string]Entry)}
}

// Upsert inserts or replaces entries by id.
func (m *Memory) Upsert(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("vector: upsert entry without id")
		}
		if m.dim > 0 && len(e.Vector) != m.dim {
			return fmt.Errorf("vector: dim mismatch for %s: got %d, want %d", e.ID, len(e.Vector), m.dim)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		m.entries[e.ID] = e
	}
	return nil
}

// Delete removes the entries with the given ids. Unknown ids are ignored.
func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Query returns the topK entries of userID closest to vec by cosine similarity.
func (m *Memory) Query(_ context.Context, vec []float32, userID string, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}

	m.mu.RLock()
	out := make([]Match, 0, len(m.entries))
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		out = append(out, Match{
			ID:        e.ID,
			UserID:    e.UserID,
			Title:     e.Title,
			Text:      e.Text,
			CreatedAt: formatTime(e.CreatedAt),
			Score:     cosine(vec, e.Vector),
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Has reports whether id is stored.
func (m *Memory) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
