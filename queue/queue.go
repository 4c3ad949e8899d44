// Package queue carries processing and deletion jobs from the
// orchestrator to the worker pool.
//
// Delivery is at-least-once with no ordering guarantee across documents;
// everything downstream (deterministic chunk IDs, idempotent callbacks) is
// designed to tolerate redelivery.
package queue

import (
	"context"
	"errors"

	"github.com/poiesic/docuverse/core"
)

var (
	// ErrQueueClosed indicates the queue has been closed.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull indicates a bounded queue rejected an enqueue.
	ErrQueueFull = errors.New("queue is full")
)

// Job is one unit of work handed to the worker pool.
type Job struct {
	TaskId     string        `json:"task_id"`
	DocumentId string        `json:"document_id"`
	Kind       core.TaskKind `json:"kind"`
	FilePath   string        `json:"file_path,omitempty"`
	FileType   core.FileType `json:"file_type,omitempty"`
}

// JobQueue is the durable channel between orchestrator and workers.
type JobQueue interface {
	// Enqueue adds a job for eventual processing.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue blocks until a job is available or ctx ends.
	Dequeue(ctx context.Context) (*Job, error)

	// Close releases the queue's resources.
	Close() error
}
