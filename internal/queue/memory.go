package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobarin/reelsmith/internal/models"
)

// MemoryQueue is an in-process FIFO. Pending jobs are lost on restart.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []*models.RenderJob
	notify chan struct{}
	closed bool
}

func NewMemory() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Push(ctx context.Context, job *models.RenderJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*models.RenderJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Wake another waiter if more work is queued.
			if remaining > 0 {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return job, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Position(ctx context.Context, videoID uuid.UUID) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.items {
		if job.VideoID == videoID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}
