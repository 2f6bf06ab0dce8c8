package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/internal/types"
)

type PostgresConfig struct {
	ConnString        string
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
}

// Postgres is a durable at-least-once task queue backed by a jobs
// table. Dequeue claims a job with FOR UPDATE SKIP LOCKED and pushes
// its availability out by the visibility timeout; a job that is not
// acked in time simply becomes claimable again with its attempt count
// already incremented. Surviving restarts therefore costs nothing
// beyond the table itself.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

var _ types.TaskQueue = (*Postgres)(nil)

func NewPostgresWithConfig(config PostgresConfig) (*Postgres, error) {
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 500 * time.Millisecond
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	q := &Postgres{
		config: config,
		pool:   pool,
	}

	if err := q.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return q, nil
}

func (q *Postgres) initialize() error {
	ctx := context.Background()

	_, err := q.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS embedding_jobs (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			available_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %v", err)
	}

	_, err = q.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS embedding_jobs_available_idx
		ON embedding_jobs (available_at)`)
	if err != nil {
		return fmt.Errorf("failed to create jobs index: %v", err)
	}

	return nil
}

func (q *Postgres) Enqueue(ctx context.Context, documentID string) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO embedding_jobs (document_id) VALUES ($1)`, documentID)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %v", err)
	}
	return nil
}

// Dequeue blocks until a job is claimable or ctx is cancelled. The
// returned job is invisible to other workers until the visibility
// timeout elapses.
func (q *Postgres) Dequeue(ctx context.Context) (*models.EmbeddingJob, error) {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		job, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Postgres) claim(ctx context.Context) (*models.EmbeddingJob, error) {
	row := q.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id FROM embedding_jobs
			WHERE available_at <= now()
			ORDER BY available_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE embedding_jobs j
		SET attempts = j.attempts + 1,
		    available_at = now() + make_interval(secs => $1)
		FROM next
		WHERE j.id = next.id
		RETURNING j.id, j.document_id, j.attempts, j.enqueued_at`,
		q.config.VisibilityTimeout.Seconds())

	var job models.EmbeddingJob
	err := row.Scan(&job.ID, &job.DocumentID, &job.Attempts, &job.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %v", err)
	}

	return &job, nil
}

func (q *Postgres) Ack(ctx context.Context, job *models.EmbeddingJob) error {
	_, err := q.pool.Exec(ctx, `
		DELETE FROM embedding_jobs WHERE id = $1`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to ack job: %v", err)
	}
	return nil
}

func (q *Postgres) Close() {
	if q.pool != nil {
		q.pool.Close()
	}
}
