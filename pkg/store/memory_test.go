package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/pkg/store"
)

func newDoc(id, owner string, createdAt time.Time) *models.Document {
	return &models.Document{
		ID:              id,
		UserID:          owner,
		Title:           "title " + id,
		Content:         "content " + id,
		EmbeddingStatus: models.StatusPending,
		CreatedAt:       createdAt,
	}
}

func TestMemoryDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()

	now := time.Now().UTC()
	require.NoError(t, docs.Insert(ctx, newDoc("d1", "alice", now)))

	got, err := docs.Get(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.EmbeddingStatus)

	// Owner scoping
	_, err = docs.Get(ctx, "bob", "d1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Duplicate insert rejected
	assert.Error(t, docs.Insert(ctx, newDoc("d1", "alice", now)))

	require.NoError(t, docs.Delete(ctx, "alice", "d1"))
	_, err = docs.Get(ctx, "alice", "d1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Deleting again reports not found
	assert.ErrorIs(t, docs.Delete(ctx, "alice", "d1"), models.ErrNotFound)
}

func TestMemoryListOrdering(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()

	base := time.Now().UTC()
	require.NoError(t, docs.Insert(ctx, newDoc("old", "alice", base.Add(-time.Hour))))
	require.NoError(t, docs.Insert(ctx, newDoc("new", "alice", base)))
	require.NoError(t, docs.Insert(ctx, newDoc("other", "bob", base)))

	list, err := docs.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestMemorySetStatusCAS(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()

	require.NoError(t, docs.Insert(ctx, newDoc("d1", "alice", time.Now().UTC())))

	ok, err := docs.SetStatus(ctx, "d1", models.StatusPending, models.StatusReady)
	require.NoError(t, err)
	assert.True(t, ok)

	// Transition from a stale expected state is a no-op
	ok, err = docs.SetStatus(ctx, "d1", models.StatusPending, models.StatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := docs.Get(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, got.EmbeddingStatus)

	// Missing document is a no-op, not an error
	ok, err = docs.SetStatus(ctx, "ghost", models.StatusPending, models.StatusReady)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryListByStatus(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()

	base := time.Now().UTC()
	require.NoError(t, docs.Insert(ctx, newDoc("p1", "alice", base)))
	require.NoError(t, docs.Insert(ctx, newDoc("p2", "bob", base.Add(time.Second))))

	f := newDoc("f1", "alice", base)
	f.EmbeddingStatus = models.StatusFailed
	require.NoError(t, docs.Insert(ctx, f))

	r := newDoc("r1", "alice", base)
	r.EmbeddingStatus = models.StatusReady
	require.NoError(t, docs.Insert(ctx, r))

	got, err := docs.ListByStatus(ctx, models.StatusPending, models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, doc := range got {
		assert.NotEqual(t, models.StatusReady, doc.EmbeddingStatus)
	}
}

func TestMemoryVectorQueryRanking(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()
	vectors := m.Vectors()

	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	// Two documents at cosine similarity 0.9 to the query, one at 0.5.
	// The 0.9 tie must break by recency: t2 before t1.
	for _, tc := range []struct {
		id        string
		createdAt time.Time
		vector    []float32
	}{
		{"high-old", t1, []float32{0.9, 0.43588989}},
		{"high-new", t2, []float32{0.9, 0.43588989}},
		{"low", t1, []float32{0.5, 0.8660254}},
	} {
		doc := newDoc(tc.id, "alice", tc.createdAt)
		doc.EmbeddingStatus = models.StatusReady
		require.NoError(t, docs.Insert(ctx, doc))
		require.NoError(t, vectors.Upsert(ctx, tc.id, "alice", tc.vector))
	}

	matches, err := vectors.Query(ctx, "alice", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "high-new", matches[0].DocumentID)
	assert.Equal(t, "high-old", matches[1].DocumentID)
	assert.Equal(t, "low", matches[2].DocumentID)
	assert.InDelta(t, 0.9, matches[0].Similarity, 1e-4)
	assert.InDelta(t, 0.5, matches[2].Similarity, 1e-4)
}

func TestMemoryQueryOnlyReadyVisible(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()
	vectors := m.Vectors()

	now := time.Now().UTC()
	for _, st := range []models.EmbeddingStatus{models.StatusPending, models.StatusFailed} {
		doc := newDoc("doc-"+string(st), "alice", now)
		doc.EmbeddingStatus = st
		require.NoError(t, docs.Insert(ctx, doc))
		// A stale vector from an earlier attempt must stay invisible
		require.NoError(t, vectors.Upsert(ctx, doc.ID, "alice", []float32{1, 0}))
	}

	matches, err := vectors.Query(ctx, "alice", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryQueryOwnerIsolation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()
	vectors := m.Vectors()

	doc := newDoc("d1", "alice", time.Now().UTC())
	doc.EmbeddingStatus = models.StatusReady
	require.NoError(t, docs.Insert(ctx, doc))
	require.NoError(t, vectors.Upsert(ctx, "d1", "alice", []float32{1, 0}))

	matches, err := vectors.Query(ctx, "bob", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()
	vectors := m.Vectors()

	doc := newDoc("d1", "alice", time.Now().UTC())
	doc.EmbeddingStatus = models.StatusReady
	require.NoError(t, docs.Insert(ctx, doc))

	require.NoError(t, vectors.Upsert(ctx, "d1", "alice", []float32{0, 1}))
	require.NoError(t, vectors.Upsert(ctx, "d1", "alice", []float32{1, 0}))

	matches, err := vectors.Query(ctx, "alice", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-4)
}

func TestMemoryUpsertRejectsZeroVector(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	err := m.Vectors().Upsert(ctx, "d1", "alice", []float32{0, 0, 0})
	assert.Error(t, err)
}

func TestMemoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	docs := m.Documents()
	vectors := m.Vectors()

	doc := newDoc("d1", "alice", time.Now().UTC())
	doc.EmbeddingStatus = models.StatusReady
	require.NoError(t, docs.Insert(ctx, doc))
	require.NoError(t, vectors.Upsert(ctx, "d1", "alice", []float32{1, 0}))

	require.NoError(t, docs.Delete(ctx, "alice", "d1"))

	matches, err := vectors.Query(ctx, "alice", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Vector delete stays idempotent after the cascade
	assert.NoError(t, vectors.Delete(ctx, "d1"))
}
