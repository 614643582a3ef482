package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/models"
)

const DefaultRenderQueue = "reelsmith:render_jobs"

// Queue is a FIFO of pending render jobs.
type Queue interface {
	Push(ctx context.Context, job *models.RenderJob) error
	// Pop waits up to timeout for the next job. It returns nil, nil when
	// nothing arrived in time.
	Pop(ctx context.Context, timeout time.Duration) (*models.RenderJob, error)
	// Position returns the 1-based position of the video's pending job, or 0
	// if the video has no pending job.
	Position(ctx context.Context, videoID uuid.UUID) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// RedisQueue keeps pending jobs in a Redis list so they survive restarts.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedis(redisURL, key string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if key == "" {
		key = DefaultRenderQueue
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) Push(ctx context.Context, job *models.RenderJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RenderJob, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job models.RenderJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *RedisQueue) Position(ctx context.Context, videoID uuid.UUID) (int, error) {
	items, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue: %w", err)
	}

	for i, item := range items {
		var job models.RenderJob
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			continue
		}
		if job.VideoID == videoID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	return int(n), err
}
