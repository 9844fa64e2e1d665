package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	userID := uuid.New()

	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskRecomputeProgress, userID)))
	assert.Equal(t, 1, q.Len())

	task, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TaskRecomputeProgress, task.Type)
	assert.Equal(t, userID, task.UserID)
	assert.NoError(t, q.Ack(context.Background(), task))
}

func TestMemoryQueueFullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	q.enqueueTimeout = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewTask(TaskCheckMiscAchievements, uuid.New())))
	assert.ErrorIs(t, q.Enqueue(ctx, NewTask(TaskCheckMiscAchievements, uuid.New())), ErrFull)

	q.Close()
	assert.ErrorIs(t, q.Enqueue(ctx, NewTask(TaskCheckMiscAchievements, uuid.New())), ErrClosed)

	// Buffered task is still delivered, then the queue reports closed.
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryQueueFullBlocksUntilSpace(t *testing.T) {
	q := NewMemoryQueue(1)
	q.enqueueTimeout = 2 * time.Second
	ctx := context.Background()

	first := NewTask(TaskRecomputeProgress, uuid.New())
	second := NewTask(TaskRecomputeProgress, uuid.New())
	require.NoError(t, q.Enqueue(ctx, first))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = q.Dequeue(ctx)
	}()

	require.NoError(t, q.Enqueue(ctx, second))
	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.UserID, task.UserID)
}

func TestMemoryQueueFullRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskRecomputeProgress, uuid.New())))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, NewTask(TaskRecomputeProgress, uuid.New())), context.DeadlineExceeded)
}

func TestWorkerDispatchesByType(t *testing.T) {
	q := NewMemoryQueue(8)
	w := NewWorker(q, 2, 3)

	var (
		mu   sync.Mutex
		seen []TaskType
	)
	record := func(ctx context.Context, task Task) error {
		mu.Lock()
		seen = append(seen, task.Type)
		mu.Unlock()
		return nil
	}
	w.Handle(TaskRecomputeProgress, record)
	w.Handle(TaskCheckBookAchievements, record)

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, NewTask(TaskRecomputeProgress, uuid.New())))
	require.NoError(t, q.Enqueue(ctx, NewTask(TaskCheckBookAchievements, uuid.New())))
	q.Close()

	require.NoError(t, w.Run(ctx))

	assert.ElementsMatch(t, []TaskType{TaskRecomputeProgress, TaskCheckBookAchievements}, seen)
}

func TestWorkerRetriesUntilSuccess(t *testing.T) {
	q := NewMemoryQueue(8)
	w := NewWorker(q, 1, 5)

	var calls int32
	done := make(chan struct{})
	w.Handle(TaskRecomputeProgress, func(ctx context.Context, task Task) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return errors.New("transient")
		}
		assert.Equal(t, 2, task.Attempt)
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Enqueue(ctx, NewTask(TaskRecomputeProgress, uuid.New())))

	go func() { _ = w.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	q := NewMemoryQueue(8)
	w := NewWorker(q, 1, 2)

	var calls int32
	w.Handle(TaskRecomputeProgress, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, NewTask(TaskRecomputeProgress, uuid.New())))

	go func() { _ = w.Run(ctx) }()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, q.Len())
}
