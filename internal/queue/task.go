// Package queue carries fire-and-forget recompute tasks with at-least-once delivery.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskRecomputeProgress     TaskType = "recompute_progress"
	TaskCheckBookAchievements TaskType = "check_book_achievements"
	TaskCheckMiscAchievements TaskType = "check_misc_achievements"
)

type Task struct {
	Type       TaskType  `json:"task_type"`
	UserID     uuid.UUID `json:"user_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	raw string // redis payload, needed to ack
}

// ErrClosed is returned by Dequeue once the queue has been shut down.
var ErrClosed = errors.New("queue closed")

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

type Queue interface {
	Producer
	// Dequeue blocks until a task is available, ctx is done, or the queue is closed.
	Dequeue(ctx context.Context) (Task, error)
	// Ack removes a delivered task from the in-flight set.
	Ack(ctx context.Context, task Task) error
}

func NewTask(kind TaskType, userID uuid.UUID) Task {
	return Task{Type: kind, UserID: userID, EnqueuedAt: time.Now()}
}
