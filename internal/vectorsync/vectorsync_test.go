package vectorsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/checksum"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/store"
	"github.com/starford/neuralos/internal/testutil"
	"github.com/starford/neuralos/internal/vector"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// flakyIndex fails the first n upserts.
type flakyIndex struct {
	*vector.Memory
	mu    sync.Mutex
	fails int
}

func (f *flakyIndex) Upsert(ctx context.Context, entries []vector.Entry) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("index unavailable")
	}
	f.mu.Unlock()
	return f.Memory.Upsert(ctx, entries)
}

func insert(t *testing.T, db *store.DB, n models.Note, op string) store.OutboxEvent {
	t.Helper()
	var ev store.OutboxEvent
	err := db.RunInTx(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		if n.ID != "" && op == store.OpUpsert {
			if err := tx.InsertNote(ctx, &n); err != nil {
				return err
			}
		}
		var err error
		ev, err = tx.Enqueue(ctx, n.ID, n.UserID, op, t0)
		return err
	})
	require.NoError(t, err)
	return ev
}

func note(id string) models.Note {
	return models.Note{ID: id, UserID: "u1", Title: "title " + id, Content: "content", CreatedAt: t0, UpdatedAt: t0}
}

func TestSyncer_UpsertStoresChecksum(t *testing.T) {
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	emb := &testutil.Embedder{}
	s := NewSyncer(db, db, idx, emb, nil)
	ctx := context.Background()

	ev := insert(t, db, note("a"), store.OpUpsert)
	require.NoError(t, s.Deliver(ctx, ev))
	assert.True(t, idx.Has("a"))

	got, err := db.GetNoteByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, checksum.String("title a content"), got.EmbeddedChecksum)

	// Same input again is a no-op.
	require.NoError(t, s.Process(ctx, ev))
	assert.Equal(t, 1, emb.Calls())

	counts, err := db.OutboxCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[store.StatusPending])
}

func TestSyncer_UpsertOfMissingNoteDeletesVector(t *testing.T) {
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []vector.Entry{{ID: "gone", UserID: "u1", Vector: testutil.Vector("x")}}))

	s := NewSyncer(db, db, idx, &testutil.Embedder{}, nil)
	require.NoError(t, s.Process(ctx, store.OutboxEvent{NoteID: "gone", Op: store.OpUpsert}))
	assert.False(t, idx.Has("gone"))
}

func TestSyncer_UnknownOp(t *testing.T) {
	db := testutil.TestDB(t)
	s := NewSyncer(db, db, vector.NewMemory(0), &testutil.Embedder{}, nil)
	assert.Error(t, s.Process(context.Background(), store.OutboxEvent{NoteID: "a", Op: "bogus"}))
}

func TestRelay_RetriesThenDelivers(t *testing.T) {
	db := testutil.TestDB(t)
	idx := &flakyIndex{Memory: vector.NewMemory(testutil.Dim), fails: 2}
	s := NewSyncer(db, db, idx, &testutil.Embedder{}, nil)
	r := NewRelay(s, db, RelayConfig{RetryAttempts: 3, MaxAttempts: 5}, nil)
	r.now = func() time.Time { return t0.Add(time.Minute) }

	insert(t, db, note("a"), store.OpUpsert)
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, idx.Has("a"))
}

func TestRelay_FailureReschedulesAndDies(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	emb := &testutil.Embedder{}
	emb.SetErr(testutil.ErrUnavailable)
	s := NewSyncer(db, db, vector.NewMemory(testutil.Dim), emb, nil)
	r := NewRelay(s, db, RelayConfig{RetryAttempts: 1, MaxAttempts: 2}, nil)

	clock := t0.Add(time.Minute)
	r.now = func() time.Time { return clock }

	ev := insert(t, db, note("a"), store.OpUpsert)
	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := db.OutboxEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.True(t, got.NextAttemptAt.Equal(clock.Add(Backoff(0))))
	assert.Contains(t, got.LastError, "upstream unavailable")

	// Not due yet.
	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, emb.Calls())

	clock = clock.Add(time.Hour)
	_, err = r.RunOnce(ctx)
	require.NoError(t, err)
	got, err = db.OutboxEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDead, got.Status)
}

func TestRelay_GraceSkipsFreshEvents(t *testing.T) {
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	s := NewSyncer(db, db, idx, &testutil.Embedder{}, nil)
	r := NewRelay(s, db, RelayConfig{Grace: 5 * time.Second}, nil)
	r.now = func() time.Time { return t0.Add(time.Second) }

	insert(t, db, note("a"), store.OpUpsert)
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, idx.Has("a"))

	n, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, idx.Has("a"))
}

func TestRelay_DrainHandlesDeletes(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	idx := vector.NewMemory(testutil.Dim)
	require.NoError(t, idx.Upsert(ctx, []vector.Entry{{ID: "old", UserID: "u1", Vector: testutil.Vector("x")}}))
	s := NewSyncer(db, db, idx, &testutil.Embedder{}, nil)
	r := NewRelay(s, db, RelayConfig{BatchSize: 1}, nil)
	r.now = func() time.Time { return t0.Add(time.Minute) }

	insert(t, db, models.Note{ID: "old", UserID: "u1"}, store.OpDelete)
	insert(t, db, note("new"), store.OpUpsert)

	n, err := r.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, idx.Has("old"))
	assert.True(t, idx.Has("new"))
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	db := testutil.TestDB(t)
	s := NewSyncer(db, db, vector.NewMemory(testutil.Dim), &testutil.Embedder{}, nil)
	r := NewRelay(s, db, RelayConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, Backoff(0))
	assert.Equal(t, time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(3))
	assert.Equal(t, 5*time.Minute, Backoff(20))
}

func TestSyncer_DeliverDefersWhileNoteInFlight(t *testing.T) {
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	gate := testutil.NewGate("title a")
	emb := &testutil.Embedder{Hook: gate.Hook}
	s := NewSyncer(db, db, idx, emb, nil)
	ctx := context.Background()

	ev := insert(t, db, note("a"), store.OpUpsert)
	done := make(chan error, 1)
	go func() { done <- s.Process(ctx, ev) }()
	<-gate.Entered()

	assert.ErrorIs(t, s.Deliver(ctx, ev), ErrBusy)

	gate.Release()
	require.NoError(t, <-done)
	assert.True(t, idx.Has("a"))
	require.NoError(t, s.Deliver(ctx, ev))
}

func TestSyncer_UpsertOfEditedNoteIsStale(t *testing.T) {
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	ctx := context.Background()
	ev := insert(t, db, note("a"), store.OpUpsert)

	emb := &testutil.Embedder{}
	emb.Hook = func(text string) {
		if text != "title a content" {
			return
		}
		content := "rewritten"
		require.NoError(t, db.RunInTx(ctx, func(ctx context.Context, tx *store.Tx) error {
			return tx.UpdateNote(ctx, "a", "u1", models.NotePatch{Content: &content}, t0.Add(time.Minute))
		}))
	}
	s := NewSyncer(db, db, idx, emb, nil)

	assert.ErrorIs(t, s.Process(ctx, ev), ErrStale)
	got, err := db.GetNoteByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got.EmbeddedChecksum)

	// The next delivery embeds the current row.
	require.NoError(t, s.Process(ctx, ev))
	hits, err := idx.Query(ctx, testutil.Vector("title a rewritten"), "u1", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rewritten", hits[0].Text)
}
