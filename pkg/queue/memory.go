package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
)

const memoryCapacity = 4096

// Memory is a channel-backed queue with the same at-least-once
// contract as Postgres: unacked jobs reappear after the visibility
// timeout with their attempt count incremented. It is not durable and
// exists for tests and single-process runs.
type Memory struct {
	visibility time.Duration

	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*memoryJob
	ready  chan int64
}

type memoryJob struct {
	documentID string
	attempts   int
	enqueuedAt time.Time
	timer      *time.Timer
}

var _ types.TaskQueue = (*Memory)(nil)

func NewMemory(visibility time.Duration) *Memory {
	if visibility == 0 {
		visibility = 30 * time.Second
	}

	return &Memory{
		visibility: visibility,
		jobs:       make(map[int64]*memoryJob),
		ready:      make(chan int64, memoryCapacity),
	}
}

func (q *Memory) Enqueue(ctx context.Context, documentID string) error {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.jobs[id] = &memoryJob{
		documentID: documentID,
		enqueuedAt: time.Now().UTC(),
	}
	q.mu.Unlock()

	select {
	case q.ready <- id:
		return nil
	default:
		q.mu.Lock()
		delete(q.jobs, id)
		q.mu.Unlock()
		return fmt.Errorf("queue full")
	}
}

func (q *Memory) Dequeue(ctx context.Context) (*models.EmbeddingJob, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case id := <-q.ready:
			q.mu.Lock()
			j, ok := q.jobs[id]
			if !ok {
				// Acked between redelivery and this claim
				q.mu.Unlock()
				continue
			}
			j.attempts++
			j.timer = time.AfterFunc(q.visibility, func() {
				q.redeliver(id)
			})
			job := &models.EmbeddingJob{
				ID:         id,
				DocumentID: j.documentID,
				Attempts:   j.attempts,
				EnqueuedAt: j.enqueuedAt,
			}
			q.mu.Unlock()

			return job, nil
		}
	}
}

func (q *Memory) redeliver(id int64) {
	q.mu.Lock()
	_, ok := q.jobs[id]
	q.mu.Unlock()
	if !ok {
		return
	}

	select {
	case q.ready <- id:
	default:
		// Capacity exhausted; retry after another visibility window
		time.AfterFunc(q.visibility, func() { q.redeliver(id) })
	}
}

func (q *Memory) Ack(ctx context.Context, job *models.EmbeddingJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[job.ID]
	if !ok {
		// Already acked; at-least-once makes this benign
		return nil
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(q.jobs, job.ID)

	return nil
}

// Len reports the number of live (unacked) jobs. Test helper.
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
