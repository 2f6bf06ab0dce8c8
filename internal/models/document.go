package models

import "time"

// EmbeddingStatus tracks where a document is in the embedding pipeline.
// A document is created as StatusPending, moves to StatusReady once a
// worker has persisted its vector, or to StatusFailed after the retry
// budget is exhausted.
type EmbeddingStatus string

const (
	StatusPending EmbeddingStatus = "pending"
	StatusReady   EmbeddingStatus = "ready"
	StatusFailed  EmbeddingStatus = "failed"
)

type Document struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	Content         string          `json:"content"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// EmbeddingJob is one unit of work on the task queue. Attempts counts
// deliveries, starting at 1 on the first dequeue; the queue increments
// it on every redelivery. The ID doubles as the ack handle.
type EmbeddingJob struct {
	ID         int64
	DocumentID string
	Attempts   int
	EnqueuedAt time.Time
}

// VectorMatch is a raw nearest-neighbour hit before it is joined back
// to the document record.
type VectorMatch struct {
	DocumentID string
	Similarity float64
}

// SearchResult is a ranked, per-query view of a document. Never persisted.
type SearchResult struct {
	Document
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}
