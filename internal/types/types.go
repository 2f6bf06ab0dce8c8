package types

import (
	"context"

	"github.com/pharmvec/pharmvec/internal/models"
)

// Core interfaces

// Embedder maps text to a fixed-dimension vector. Implementations must
// be safe for concurrent use and must never return a zero vector
// silently; unprocessable input yields a *models.EmbeddingError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore is the source of truth for document existence.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	// Get is owner-scoped; documents of other owners are ErrNotFound.
	Get(ctx context.Context, owner, id string) (*models.Document, error)
	// GetAny looks a document up by id alone. Used by workers, which
	// have no caller identity.
	GetAny(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, owner string) ([]models.Document, error)
	// Delete removes the document and cascades to its vector. Returns
	// models.ErrNotFound if the owner has no such document.
	Delete(ctx context.Context, owner, id string) error
	// SetStatus is a compare-and-set on embedding_status. It reports
	// whether the transition was applied; a false return means the
	// document was deleted or already moved on, which callers treat
	// as a harmless no-op.
	SetStatus(ctx context.Context, id string, from, to models.EmbeddingStatus) (bool, error)
	ListByStatus(ctx context.Context, statuses ...models.EmbeddingStatus) ([]models.Document, error)
}

// VectorStore persists embeddings keyed by document and owner and
// answers owner-scoped top-k cosine-similarity queries. Only vectors
// whose document is StatusReady are ever returned by Query.
type VectorStore interface {
	// Upsert replaces any existing vector for the document. Idempotent.
	// Zero vectors are rejected.
	Upsert(ctx context.Context, documentID, owner string, vector []float32) error
	// Delete is idempotent; deleting an absent vector is not an error.
	Delete(ctx context.Context, documentID string) error
	// Query returns up to k matches ordered by similarity descending,
	// ties broken by most recent document first.
	Query(ctx context.Context, owner string, vector []float32, k int) ([]models.VectorMatch, error)
}

// TaskQueue is a durable at-least-once work queue for embedding jobs.
// Dequeue blocks until a job is available or ctx is cancelled. A job
// that is not acked within the queue's visibility timeout is
// redelivered with its attempt count incremented, so consumers must be
// idempotent.
type TaskQueue interface {
	Enqueue(ctx context.Context, documentID string) error
	Dequeue(ctx context.Context) (*models.EmbeddingJob, error)
	Ack(ctx context.Context, job *models.EmbeddingJob) error
}

// Authenticator resolves a bearer token to an owner id. Credential
// storage and token issuance live outside this system.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// AuditLogger records user-visible actions with a non-reversible
// subject identifier.
type AuditLogger interface {
	Record(subject, action string, details map[string]any)
}
