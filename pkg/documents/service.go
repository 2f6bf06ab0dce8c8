package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
)

// Service owns the document lifecycle. Creation persists the row and
// enqueues the embedding job without waiting for it, so writes stay
// fast regardless of model latency; clients poll embedding_status to
// learn when (or whether) the document became searchable.
type Service struct {
	docs    types.DocumentStore
	vectors types.VectorStore
	queue   types.TaskQueue
	audit   types.AuditLogger
}

func NewService(
	docs types.DocumentStore,
	vectors types.VectorStore,
	queue types.TaskQueue,
	audit types.AuditLogger,
) *Service {
	return &Service{
		docs:    docs,
		vectors: vectors,
		queue:   queue,
		audit:   audit,
	}
}

func (s *Service) Create(ctx context.Context, owner, title, content string) (*models.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrBadQuery)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", models.ErrBadQuery)
	}

	doc := &models.Document{
		ID:              uuid.NewString(),
		UserID:          owner,
		Title:           title,
		Content:         content,
		EmbeddingStatus: models.StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	if err := s.queue.Enqueue(ctx, doc.ID); err != nil {
		// The document exists but has no job; a reindex pass picks
		// such strays up from their pending status
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	s.record(owner, "DOCUMENT_CREATED", map[string]any{"document_id": doc.ID})

	return doc, nil
}

func (s *Service) Get(ctx context.Context, owner, id string) (*models.Document, error) {
	doc, err := s.docs.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	s.record(owner, "DOCUMENT_VIEWED", map[string]any{"document_id": id})

	return doc, nil
}

func (s *Service) List(ctx context.Context, owner string) ([]models.Document, error) {
	docs, err := s.docs.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	s.record(owner, "DOCUMENTS_LISTED", nil)

	return docs, nil
}

func (s *Service) Delete(ctx context.Context, owner, id string) error {
	if err := s.docs.Delete(ctx, owner, id); err != nil {
		return err
	}
	// The document store cascades to the vector; this covers backends
	// that keep the two apart, and is idempotent either way
	if err := s.vectors.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	s.record(owner, "DOCUMENT_DELETED", map[string]any{"document_id": id})

	return nil
}

// Reindex re-enqueues embedding jobs for every document that is not
// ready, resetting failed ones to pending first so a stale failed
// status never lingers once a new attempt is underway. It reports how
// many jobs were enqueued.
func (s *Service) Reindex(ctx context.Context, progress func(doc models.Document)) (int, error) {
	docs, err := s.docs.ListByStatus(ctx, models.StatusPending, models.StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}

	enqueued := 0
	for _, doc := range docs {
		if doc.EmbeddingStatus == models.StatusFailed {
			if _, err := s.docs.SetStatus(ctx, doc.ID, models.StatusFailed, models.StatusPending); err != nil {
				return enqueued, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
			}
		}
		if err := s.queue.Enqueue(ctx, doc.ID); err != nil {
			return enqueued, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
		}
		enqueued++
		if progress != nil {
			progress(doc)
		}
	}

	return enqueued, nil
}

func (s *Service) record(owner, action string, details map[string]any) {
	if s.audit != nil {
		s.audit.Record(owner, action, details)
	}
}
