package storage

import (
	"context"

	"github.com/poiesic/docuverse/core"
)

// Repository provides common operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// TaskRepository provides operations for managing task records.
//
// The repository is deliberately free of lifecycle rules: monotonicity,
// staleness, and the single-active-task invariant are enforced by the
// orchestrator, which serializes mutations per document before calling in.
type TaskRepository interface {
	Repository

	// PutTask inserts or replaces a task record.
	// Also updates the document -> current task index.
	PutTask(ctx context.Context, task *core.Task) error

	// GetTask retrieves a task by ID.
	// Returns ErrNotFound if the task doesn't exist.
	GetTask(ctx context.Context, id string) (*core.Task, error)

	// GetTaskByDocument retrieves the current task for a document.
	// Returns ErrNotFound if the document has never had a task.
	GetTaskByDocument(ctx context.Context, documentID string) (*core.Task, error)

	// ListActiveTasks returns all tasks in a non-terminal status.
	// Used by the stale-task sweeper.
	ListActiveTasks(ctx context.Context) ([]*core.Task, error)
}

// DocumentRepository provides operations for managing document records.
type DocumentRepository interface {
	Repository

	// PutDocument inserts or replaces a document record.
	PutDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns all documents ordered by upload date, newest first.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document record by ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error
}
