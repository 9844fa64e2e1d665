package database

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when redisURL is empty or unreachable; callers fall back to in-process behaviour.
func ConnectRedis(redisURL string) *redis.Client {
	if redisURL == "" {
		log.Println("REDIS_URL is not set, running without redis")
		return nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("invalid REDIS_URL: %v", err)
		return nil
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("failed to connect redis, running without it: %v", err)
		_ = client.Close()
		return nil
	}

	return client
}
