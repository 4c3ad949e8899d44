package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const dequeueBlockTimeout = 5 * time.Second

// RedisConfig holds connection settings for the Redis-backed queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// DefaultRedisConfig returns settings for a local Redis instance.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		Key:  "docuverse:jobs",
	}
}

// RedisQueue implements JobQueue on a Redis list. Jobs are pushed with
// LPUSH and consumed with BRPOP, giving at-least-once delivery to
// whichever worker pops first.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

var _ JobQueue = (*RedisQueue)(nil)

// NewRedisQueue connects to Redis and returns a queue on the configured list.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultRedisConfig().Key
	}

	return &RedisQueue{
		client: client,
		key:    key,
		logger: slog.Default().With("component", "redis-queue"),
	}, nil
}

// Enqueue pushes a job onto the list as JSON.
func (q *RedisQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.logger.Debug("job enqueued", "task", job.TaskId, "kind", job.Kind)
	return nil
}

// Dequeue blocks on BRPOP until a job arrives or ctx ends. The pop uses a
// bounded timeout and loops so context cancellation is observed promptly.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := q.client.BRPop(ctx, dequeueBlockTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // timed out with no job, poll again
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		// BRPOP returns [key, value]
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error("discarding malformed job payload", "err", err)
			continue
		}
		return &job, nil
	}
}

// Close closes the Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
