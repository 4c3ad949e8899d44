package queue

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1024

// MemoryQueue is an in-process JobQueue used by tests and single-binary
// deployments where orchestrator and worker share a process.
type MemoryQueue struct {
	jobs   chan *Job
	mu     sync.Mutex
	closed bool
}

var _ JobQueue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an in-memory queue with the default capacity.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(chan *Job, defaultMemoryCapacity)}
}

// Enqueue adds a job; returns ErrQueueFull when the buffer is exhausted
// rather than blocking the caller.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The send stays under the mutex so Close cannot close the channel
	// between the closed check and the send. It never blocks: the select
	// falls through to ErrQueueFull when the buffer is exhausted.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until a job is available, the queue closes, or ctx ends.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, ErrQueueClosed
		}
		return job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the queue. Pending jobs remain readable until drained.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
