package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmvec/pharmvec/pkg/queue"
)

func TestMemoryEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory(time.Minute)

	require.NoError(t, q.Enqueue(ctx, "doc-1"))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", job.DocumentID)
	assert.Equal(t, 1, job.Attempts)
	assert.False(t, job.EnqueuedAt.IsZero())

	require.NoError(t, q.Ack(ctx, job))
	assert.Equal(t, 0, q.Len())

	// Acking twice is benign
	assert.NoError(t, q.Ack(ctx, job))
}

func TestMemoryDequeueBlocksUntilCancel(t *testing.T) {
	q := queue.NewMemory(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryRedeliveryAfterVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory(30 * time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "doc-1"))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempts)

	// No ack: the job must come back with the attempt count bumped
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	second, err := q.Dequeue(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "doc-1", second.DocumentID)
	assert.Equal(t, 2, second.Attempts)

	require.NoError(t, q.Ack(ctx, second))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryAckStopsRedelivery(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory(20 * time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "doc-1"))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Ack(ctx, job))

	time.Sleep(60 * time.Millisecond)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryDeliversEachEnqueuedJob(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemory(time.Minute)

	ids := map[string]bool{"a": false, "b": false, "c": false}
	for id := range ids {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	for range ids {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		ids[job.DocumentID] = true
		require.NoError(t, q.Ack(ctx, job))
	}

	for id, seen := range ids {
		assert.True(t, seen, "job %s was never delivered", id)
	}
}
