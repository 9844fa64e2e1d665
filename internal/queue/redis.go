package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisQueue struct {
	client        *redis.Client
	pendingKey    string
	processingKey string
	blockFor      time.Duration
}

// NewRedisQueue stores tasks in a redis list. Delivered tasks move to a processing list
// until acked, so a crash between delivery and ack replays them on the next start.
func NewRedisQueue(client *redis.Client, key string) *redisQueue {
	return &redisQueue{
		client:        client,
		pendingKey:    key,
		processingKey: key + ":processing",
		blockFor:      5 * time.Second,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.client.LPush(ctx, q.pendingKey, payload).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		payload, err := q.client.BLMove(ctx, q.pendingKey, q.processingKey, "RIGHT", "LEFT", q.blockFor).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, err
		}

		var task Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			log.Printf("[queue] dropping malformed task %q: %v", payload, err)
			q.client.LRem(ctx, q.processingKey, 1, payload)
			continue
		}
		task.raw = payload
		return task, nil
	}
}

func (q *redisQueue) Ack(ctx context.Context, task Task) error {
	if task.raw == "" {
		return nil
	}
	return q.client.LRem(ctx, q.processingKey, 1, task.raw).Err()
}

// Recover moves tasks left in the processing list by a previous process back to pending.
func (q *redisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey, q.pendingKey, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
