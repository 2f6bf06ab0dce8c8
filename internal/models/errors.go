package models

import (
	"errors"
	"fmt"
)

// Domain errors, distinct from infrastructure failures.
var (
	// ErrNotFound indicates a document does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("not found")

	// ErrBadQuery indicates a search query that cannot be embedded
	// (empty, malformed, or the embedding call timed out).
	ErrBadQuery = errors.New("bad query")

	// ErrUnavailable indicates a downstream store or queue is
	// unreachable. Callers may retry.
	ErrUnavailable = errors.New("service unavailable")
)

// EmbeddingError reports input that could not be turned into a vector.
// Workers retry it a bounded number of times before marking the
// document failed; the query path surfaces it as ErrBadQuery.
type EmbeddingError struct {
	Reason string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("embedding failed: %s", e.Reason)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
