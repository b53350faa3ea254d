package repository

import (
	"context"
	"time"

	"readinglist/internal/domain"
)

// RetitleQueue is a FIFO of articles whose titles should be resolved again.
type RetitleQueue interface {
	// Push enqueues task. It reports false when the same URL is already pending.
	Push(ctx context.Context, task domain.RetitleTask) (bool, error)
	// Pop waits up to timeout for a task. It returns nil, nil when the queue stays empty.
	Pop(ctx context.Context, timeout time.Duration) (*domain.RetitleTask, error)
	// Done releases the pending marker of a processed task.
	Done(ctx context.Context, task domain.RetitleTask) error
	// Size returns the current number of items in the queue.
	Size(ctx context.Context) (int64, error)
}
