package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrFull is returned when the in-process buffer stays full for the whole enqueue timeout.
var ErrFull = errors.New("task queue full")

type memoryQueue struct {
	tasks          chan Task
	enqueueTimeout time.Duration
	mu             sync.RWMutex
	closed         bool
}

// NewMemoryQueue is the in-process fallback used when redis is unavailable.
// Tasks do not survive a restart. A full buffer applies backpressure to producers
// for up to the enqueue timeout before the task is refused.
func NewMemoryQueue(buffer int) *memoryQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &memoryQueue{tasks: make(chan Task, buffer), enqueueTimeout: 5 * time.Second}
}

func (q *memoryQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	default:
	}

	timer := time.NewTimer(q.enqueueTimeout)
	defer timer.Stop()

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: dropping %s for user %s", ErrFull, task.Type, task.UserID)
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return Task{}, ErrClosed
		}
		return task, nil
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

func (q *memoryQueue) Ack(context.Context, Task) error {
	return nil
}

func (q *memoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
}

func (q *memoryQueue) Len() int {
	return len(q.tasks)
}
