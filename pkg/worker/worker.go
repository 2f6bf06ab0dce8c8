package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
	"github.com/pharmvec/pharmvec/pkg/processor"
)

type Config struct {
	Concurrency int
	// MaxAttempts is the retry budget for embedding failures. A job
	// delivered more times than this marks its document failed instead
	// of being retried again.
	MaxAttempts int
	// RateLimit caps embedder calls per second across all runners.
	RateLimit float64
}

// Worker pulls embedding jobs from the task queue and drives each
// document from pending to ready (or failed). Instances share no state
// and coordinate only through the queue's delivery guarantee and the
// stores' atomic writes, so any number can run in parallel.
type Worker struct {
	config     Config
	queue      types.TaskQueue
	docs       types.DocumentStore
	vectors    types.VectorStore
	embedder   types.Embedder
	normalizer processor.Normalizer
	limiter    *rate.Limiter

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewWithConfig(
	config Config,
	queue types.TaskQueue,
	docs types.DocumentStore,
	vectors types.VectorStore,
	embedder types.Embedder,
	normalizer processor.Normalizer,
) *Worker {
	if config.Concurrency == 0 {
		config.Concurrency = 2
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 4.0
	}

	return &Worker{
		config:     config,
		queue:      queue,
		docs:       docs,
		vectors:    vectors,
		embedder:   embedder,
		normalizer: normalizer,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Start runs the worker loops and blocks until ctx is cancelled or
// Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopCh:
		}
		cancel()
	}()

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(runCtx)
	}
	w.wg.Wait()
	cancel()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return ctx.Err()
}

// Stop shuts the worker down and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: dequeue failed: %v", err)
			continue
		}

		w.processJob(ctx, job)
	}
}

// processJob is the per-job state machine. The success-path write
// order is load document, embed, upsert vector, mark ready, ack; a
// crash at any point leaves the document pending and the job unacked,
// so redelivery recomputes from scratch. The order must not change: it
// is what rules out a ready document without a vector.
func (w *Worker) processJob(ctx context.Context, job *models.EmbeddingJob) {
	doc, err := w.docs.GetAny(ctx, job.DocumentID)
	if errors.Is(err, models.ErrNotFound) {
		// Deleted while the job was queued; discard
		if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
			log.Printf("worker: ack failed for deleted document %s: %v", job.DocumentID, ackErr)
		}
		return
	}
	if err != nil {
		// Store unreachable; leave unacked for redelivery
		log.Printf("worker: lookup failed for document %s: %v", job.DocumentID, err)
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	vector, err := w.embedder.Embed(ctx, w.normalizer.Normalize(doc.Content))
	if err != nil {
		w.handleEmbedFailure(ctx, job, err)
		return
	}

	if err := w.vectors.Upsert(ctx, doc.ID, doc.UserID, vector); err != nil {
		log.Printf("worker: upsert failed for document %s: %v", doc.ID, err)
		return
	}

	// A false return means the document was deleted or already ready
	// (redelivered job); either way the upsert above is harmless and
	// the job is done.
	if _, err := w.docs.SetStatus(ctx, doc.ID, models.StatusPending, models.StatusReady); err != nil {
		log.Printf("worker: status update failed for document %s: %v", doc.ID, err)
		return
	}

	if err := w.queue.Ack(ctx, job); err != nil {
		log.Printf("worker: ack failed for document %s: %v", doc.ID, err)
	}
}

func (w *Worker) handleEmbedFailure(ctx context.Context, job *models.EmbeddingJob, err error) {
	var embErr *models.EmbeddingError
	if !errors.As(err, &embErr) {
		// Infrastructure failure; redelivery will retry without
		// consuming the document's budget terminally
		log.Printf("worker: embedding unavailable for document %s: %v", job.DocumentID, err)
		return
	}

	if job.Attempts <= w.config.MaxAttempts {
		// Leave unacked; the visibility timeout redelivers
		log.Printf("worker: embedding failed for document %s (attempt %d/%d): %v",
			job.DocumentID, job.Attempts, w.config.MaxAttempts, err)
		return
	}

	log.Printf("worker: retry budget exhausted for document %s: %v", job.DocumentID, err)
	if _, err := w.docs.SetStatus(ctx, job.DocumentID, models.StatusPending, models.StatusFailed); err != nil {
		log.Printf("worker: failed-status update failed for document %s: %v", job.DocumentID, err)
		return
	}
	if err := w.queue.Ack(ctx, job); err != nil {
		log.Printf("worker: ack failed for document %s: %v", job.DocumentID, err)
	}
}
