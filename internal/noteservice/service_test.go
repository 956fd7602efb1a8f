package noteservice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/neuralos/internal/apperr"
	"github.com/starford/neuralos/internal/checksum"
	"github.com/starford/neuralos/internal/models"
	"github.com/starford/neuralos/internal/store"
	"github.com/starford/neuralos/internal/testutil"
	"github.com/starford/neuralos/internal/vector"
	"github.com/starford/neuralos/internal/vectorsync"
)

type recordedEvent struct{ kind, userID, noteID string }

type sink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *sink) NoteEvent(kind, userID, noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{kind, userID, noteID})
}

type fixture struct {
	svc      *Service
	db       *store.DB
	index    *vector.Memory
	embedder *testutil.Embedder
	sink     *sink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	idx := vector.NewMemory(testutil.Dim)
	emb := &testutil.Embedder{}
	sk := &sink{}
	syncer := vectorsync.NewSyncer(db, db, idx, emb, nil)
	svc := NewService(db, syncer,
		WithEvents(sk),
		WithClock(testutil.Clock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))))
	return &fixture{svc: svc, db: db, index: idx, embedder: emb, sink: sk}
}

func pendingOutbox(t *testing.T, db *store.DB) int {
	t.Helper()
	counts, err := db.OutboxCounts(context.Background())
	require.NoError(t, err)
	return counts[store.StatusPending]
}

func TestCreate_DefaultsAndIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "buy milk"})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.DefaultNoteTitle, n.Title)
	assert.Equal(t, models.Tags{}, n.Tags)
	assert.True(t, n.CreatedAt.Equal(n.UpdatedAt))

	assert.True(t, f.index.Has(n.ID))
	assert.Equal(t, []string{"Untitled Note buy milk"}, f.embedder.Inputs())
	assert.Zero(t, pendingOutbox(t, f.db))
	assert.Equal(t, []recordedEvent{{KindCreated, "u1", n.ID}}, f.sink.events)
}

func TestCreate_RequiresUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCreate_SucceedsWhenEmbeddingFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.embedder.SetErr(testutil.ErrUnavailable)

	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Content: "c"})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.False(t, f.index.Has(n.ID))
	assert.Equal(t, 1, pendingOutbox(t, f.db))
}

func TestGet_NotFoundAndOwnerScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "x"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Get(ctx, n.ID, "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggleFavoriteTwiceRestoresValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "x"})
	require.NoError(t, err)

	v, err := f.svc.ToggleFavorite(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.True(t, v)
	v, err = f.svc.ToggleFavorite(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.False(t, v)

	got, err := f.svc.Get(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.False(t, got.IsFavorite)
	assert.True(t, got.UpdatedAt.After(n.UpdatedAt))

	_, err = f.svc.ToggleArchive(ctx, "missing", "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestToggle_ConcurrentCallsAreAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "x"})
	require.NoError(t, err)

	const calls = 10
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ToggleArchive(ctx, n.ID, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.False(t, got.IsArchived, "an even number of toggles must cancel out")
}

func TestSoftDeleteThenRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "keep", Content: "me"})
	require.NoError(t, err)

	require.NoError(t, f.svc.SoftDelete(ctx, n.ID, "u1"))
	trashed, err := f.svc.Get(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.True(t, trashed.IsDeleted)
	assert.True(t, f.index.Has(n.ID), "soft delete keeps the vector entry")

	all, err := f.svc.List(ctx, models.ListQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, f.svc.Restore(ctx, n.ID, "u1"))
	restored, err := f.svc.Get(ctx, n.ID, "u1")
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Equal(t, n.Title, restored.Title)
	assert.Equal(t, n.Content, restored.Content)
	assert.True(t, restored.UpdatedAt.After(trashed.UpdatedAt))
}

func TestSoftDelete_MissingIsNotAnError(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.SoftDelete(context.Background(), "missing", "u1"))
	assert.ErrorIs(t, f.svc.Restore(context.Background(), "missing", "u1"), apperr.ErrNotFound)
}

func TestUpdate_TagsOnlySkipsEmbedding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Content: "c"})
	require.NoError(t, err)
	require.Equal(t, 1, f.embedder.Calls())

	tags := []string{"a", "b"}
	got, err := f.svc.Update(ctx, n.ID, "u1", models.NotePatch{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, models.Tags{"a", "b"}, got.Tags)
	assert.Equal(t, 1, f.embedder.Calls())
	assert.True(t, got.UpdatedAt.After(n.UpdatedAt))
}

func TestUpdate_ContentChangeReembeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Content: "old"})
	require.NoError(t, err)

	content := "new words"
	got, err := f.svc.Update(ctx, n.ID, "u1", models.NotePatch{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, "new words", got.Content)
	assert.Equal(t, 2, f.embedder.Calls())
	assert.Equal(t, "t new words", f.embedder.Inputs()[1])

	matches, err := f.index.Query(ctx, testutil.Vector("new words"), "u1", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new words", matches[0].Text)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	title := "x"
	_, err := f.svc.Update(context.Background(), "missing", "u1", models.NotePatch{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHardDelete_RemovesVector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, f.svc.HardDelete(ctx, n.ID, "u1"))
	_, err = f.svc.Get(ctx, n.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, f.index.Has(n.ID))
	assert.Zero(t, pendingOutbox(t, f.db))

	assert.NoError(t, f.svc.HardDelete(ctx, "missing", "u1"))
}

func TestEmptyTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "keep"})
	require.NoError(t, err)
	var trashed []string
	for i := 0; i < 3; i++ {
		n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "drop"})
		require.NoError(t, err)
		require.NoError(t, f.svc.SoftDelete(ctx, n.ID, "u1"))
		trashed = append(trashed, n.ID)
	}

	count, err := f.svc.EmptyTrash(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	rest, err := f.svc.List(ctx, models.ListQuery{UserID: "u1", FilterType: models.FilterTrash})
	require.NoError(t, err)
	assert.Empty(t, rest)
	for _, id := range trashed {
		assert.False(t, f.index.Has(id))
	}
	assert.True(t, f.index.Has(keep.ID))

	count, err = f.svc.EmptyTrash(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestList_FiltersAndOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mk := func(content string) *models.Note {
		n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: content})
		require.NoError(t, err)
		return n
	}
	plain := mk("plain")
	fav := mk("fav")
	arch := mk("arch")
	_, err := f.svc.ToggleFavorite(ctx, fav.ID, "u1")
	require.NoError(t, err)
	_, err = f.svc.ToggleArchive(ctx, arch.ID, "u1")
	require.NoError(t, err)

	all, err := f.svc.List(ctx, models.ListQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fav.ID, all[0].ID)
	assert.Equal(t, plain.ID, all[1].ID)
	for _, n := range all {
		assert.False(t, n.IsDeleted)
		assert.False(t, n.IsArchived)
	}

	archived, err := f.svc.List(ctx, models.ListQuery{UserID: "u1", FilterType: models.FilterArchived})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, arch.ID, archived[0].ID)
}

func TestReindex_ReembedsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Content: "x"})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(ctx, CreateInput{UserID: "u2", Content: "y"})
	require.NoError(t, err)

	n, err := f.svc.Reindex(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, pendingOutbox(t, f.db))

	n, err = f.svc.Reindex(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func (f *fixture) drain(t *testing.T) {
	t.Helper()
	relay := vectorsync.NewRelay(vectorsync.NewSyncer(f.db, f.db, f.index, f.embedder, nil), f.db, vectorsync.RelayConfig{}, nil)
	_, err := relay.Drain(context.Background())
	require.NoError(t, err)
}

func waitEntered(t *testing.T, g *testutil.Gate) {
	t.Helper()
	select {
	case <-g.Entered():
	case <-time.After(2 * time.Second):
		t.Fatal("embedding never started")
	}
}

func TestHardDelete_DuringInlineCreateLeavesNoVector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gate := testutil.NewGate("doomed")
	f.embedder.Hook = gate.Hook

	created := make(chan *models.Note, 1)
	go func() {
		n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "doomed", Content: "draft"})
		assert.NoError(t, err)
		created <- n
	}()
	waitEntered(t, gate)

	notes, err := f.svc.List(ctx, models.ListQuery{UserID: "u1", FilterType: models.FilterAll})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	id := notes[0].ID

	require.NoError(t, f.svc.HardDelete(ctx, id, "u1"))
	gate.Release()
	<-created

	assert.False(t, f.index.Has(id))
	assert.Equal(t, 2, pendingOutbox(t, f.db), "both events still owed")

	f.drain(t)
	assert.False(t, f.index.Has(id))
	assert.Zero(t, pendingOutbox(t, f.db))
}

func TestConcurrentUpdates_IndexEndsOnLatestContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Create(ctx, CreateInput{UserID: "u1", Title: "t", Content: "seed"})
	require.NoError(t, err)

	gate := testutil.NewGate("alpha")
	f.embedder.Hook = gate.Hook

	alpha, beta := "alpha", "beta"
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.svc.Update(ctx, n.ID, "u1", models.NotePatch{Content: &alpha})
		assert.NoError(t, err)
	}()
	waitEntered(t, gate)

	_, err = f.svc.Update(ctx, n.ID, "u1", models.NotePatch{Content: &beta})
	require.NoError(t, err)
	gate.Release()
	<-done

	assert.NotZero(t, pendingOutbox(t, f.db))
	stored, err := f.db.GetNoteByID(ctx, n.ID)
	require.NoError(t, err)
	assert.NotEqual(t, checksum.String("t alpha"), stored.EmbeddedChecksum)

	f.drain(t)
	assert.Zero(t, pendingOutbox(t, f.db))

	hits, err := f.index.Query(ctx, testutil.Vector("t beta"), "u1", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "beta", hits[0].Text)

	stored, err = f.db.GetNoteByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, checksum.String("t beta"), stored.EmbeddedChecksum)
}
