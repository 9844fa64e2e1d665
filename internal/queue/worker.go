package queue

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

type Handler func(ctx context.Context, task Task) error

type Worker struct {
	queue       Queue
	handlers    map[TaskType]Handler
	concurrency int
	maxAttempts int
	backoff     time.Duration
}

func NewWorker(q Queue, concurrency, maxAttempts int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{
		queue:       q,
		handlers:    make(map[TaskType]Handler),
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		backoff:     time.Second,
	}
}

func (w *Worker) Handle(kind TaskType, h Handler) {
	w.handlers[kind] = h
}

// Run consumes tasks until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	log.Printf("[worker] started %d consumers", w.concurrency)
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return err
			}
			log.Printf("[worker] dequeue failed: %v", err)
			select {
			case <-time.After(w.backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[worker] %s for user %s panicked: %v", task.Type, task.UserID, r)
			w.retry(ctx, task)
			w.ack(ctx, task)
		}
	}()

	handler, ok := w.handlers[task.Type]
	if !ok {
		log.Printf("[worker] no handler for task type %s", task.Type)
		w.ack(ctx, task)
		return
	}

	if err := handler(ctx, task); err != nil {
		log.Printf("[worker] %s for user %s failed (attempt %d): %v", task.Type, task.UserID, task.Attempt+1, err)
		w.retry(ctx, task)
	}
	w.ack(ctx, task)
}

func (w *Worker) retry(ctx context.Context, task Task) {
	next := task
	next.Attempt++
	next.raw = ""
	if next.Attempt >= w.maxAttempts {
		log.Printf("[worker] giving up on %s for user %s after %d attempts", task.Type, task.UserID, next.Attempt)
		return
	}
	if err := w.queue.Enqueue(ctx, next); err != nil {
		log.Printf("[worker] failed to requeue %s for user %s: %v", task.Type, task.UserID, err)
	}
}

func (w *Worker) ack(ctx context.Context, task Task) {
	if err := w.queue.Ack(ctx, task); err != nil {
		log.Printf("[worker] ack failed for %s: %v", task.Type, err)
	}
}
