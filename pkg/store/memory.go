package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
)

// Memory is an in-memory counterpart of Postgres for tests and local
// runs without a database. Like Postgres it exposes the document and
// vector stores as views over shared state, so visibility rules
// (ready-only queries, cascade on delete) behave the same way.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]models.Document
	vectors map[string]memoryVector
}

type memoryVector struct {
	owner  string
	vector []float32
}

type MemoryDocuments struct {
	m *Memory
}

type MemoryVectors struct {
	m *Memory
}

var (
	_ types.DocumentStore = (*MemoryDocuments)(nil)
	_ types.VectorStore   = (*MemoryVectors)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]models.Document),
		vectors: make(map[string]memoryVector),
	}
}

func (m *Memory) Documents() *MemoryDocuments {
	return &MemoryDocuments{m: m}
}

func (m *Memory) Vectors() *MemoryVectors {
	return &MemoryVectors{m: m}
}

func (d *MemoryDocuments) Insert(ctx context.Context, doc *models.Document) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	if _, ok := d.m.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	d.m.docs[doc.ID] = *doc

	return nil
}

func (d *MemoryDocuments) Get(ctx context.Context, owner, id string) (*models.Document, error) {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()

	doc, ok := d.m.docs[id]
	if !ok || doc.UserID != owner {
		return nil, models.ErrNotFound
	}
	out := doc

	return &out, nil
}

func (d *MemoryDocuments) GetAny(ctx context.Context, id string) (*models.Document, error) {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()

	doc, ok := d.m.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := doc

	return &out, nil
}

func (d *MemoryDocuments) List(ctx context.Context, owner string) ([]models.Document, error) {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()

	var docs []models.Document
	for _, doc := range d.m.docs {
		if doc.UserID == owner {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})

	return docs, nil
}

func (d *MemoryDocuments) ListByStatus(ctx context.Context, statuses ...models.EmbeddingStatus) ([]models.Document, error) {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()

	wanted := make(map[models.EmbeddingStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var docs []models.Document
	for _, doc := range d.m.docs {
		if wanted[doc.EmbeddingStatus] {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})

	return docs, nil
}

func (d *MemoryDocuments) Delete(ctx context.Context, owner, id string) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	doc, ok := d.m.docs[id]
	if !ok || doc.UserID != owner {
		return models.ErrNotFound
	}
	delete(d.m.docs, id)
	// Cascade, as the foreign key does in Postgres
	delete(d.m.vectors, id)

	return nil
}

func (d *MemoryDocuments) SetStatus(ctx context.Context, id string, from, to models.EmbeddingStatus) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()

	doc, ok := d.m.docs[id]
	if !ok || doc.EmbeddingStatus != from {
		return false, nil
	}
	doc.EmbeddingStatus = to
	d.m.docs[id] = doc

	return true, nil
}

func (v *MemoryVectors) Upsert(ctx context.Context, documentID, owner string, vector []float32) error {
	if isZeroVector(vector) {
		return fmt.Errorf("refusing to store zero vector for document %s", documentID)
	}

	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	stored := make([]float32, len(vector))
	copy(stored, vector)
	v.m.vectors[documentID] = memoryVector{owner: owner, vector: stored}

	return nil
}

func (v *MemoryVectors) Delete(ctx context.Context, documentID string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	delete(v.m.vectors, documentID)

	return nil
}

func (v *MemoryVectors) Query(ctx context.Context, owner string, vector []float32, k int) ([]models.VectorMatch, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()

	type scored struct {
		match models.VectorMatch
		doc   models.Document
	}

	var hits []scored
	for id, entry := range v.m.vectors {
		if entry.owner != owner {
			continue
		}
		doc, ok := v.m.docs[id]
		if !ok || doc.EmbeddingStatus != models.StatusReady {
			continue
		}
		hits = append(hits, scored{
			match: models.VectorMatch{
				DocumentID: id,
				Similarity: cosineSimilarity(vector, entry.vector),
			},
			doc: doc,
		})
	}

	// Similarity descending, most recent document first on ties
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].match.Similarity != hits[j].match.Similarity {
			return hits[i].match.Similarity > hits[j].match.Similarity
		}
		if !hits[i].doc.CreatedAt.Equal(hits[j].doc.CreatedAt) {
			return hits[i].doc.CreatedAt.After(hits[j].doc.CreatedAt)
		}
		return hits[i].doc.ID < hits[j].doc.ID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	matches := make([]models.VectorMatch, len(hits))
	for i, h := range hits {
		matches[i] = h.match
	}

	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
