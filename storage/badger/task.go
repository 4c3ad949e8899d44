// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/storage"
)

// TaskRepository implements storage.TaskRepository on BadgerDB.
type TaskRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a task repository on the given backend.
func NewTaskRepository(backend *Backend) (storage.TaskRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &TaskRepository{
		backend: backend,
		logger:  slog.Default().With("repository", "tasks"),
	}, nil
}

// PutTask inserts or replaces a task record and points the document's
// current-task index at it.
func (r *TaskRepository) PutTask(ctx context.Context, task *core.Task) error {
	if err := core.ValidateTask(task); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	return r.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(makeTaskKey(task.Id), storage.MarshalTask(task)); err != nil {
			return err
		}
		return tx.Set(makeTaskDocIndexKey(task.DocumentId), []byte(task.Id))
	})
}

// GetTask retrieves a task by ID.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*core.Task, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var task *core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTaskKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			task, err = storage.UnmarshalTask(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTaskByDocument retrieves the current task for a document via the index.
func (r *TaskRepository) GetTaskByDocument(ctx context.Context, documentID string) (*core.Task, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var taskID string
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeTaskDocIndexKey(documentID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			taskID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r.GetTask(ctx, taskID)
}

// ListActiveTasks scans all task records and returns the non-terminal ones.
func (r *TaskRepository) ListActiveTasks(ctx context.Context) ([]*core.Task, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var tasks []*core.Task
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(taskRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				task, err := storage.UnmarshalTask(val)
				if err != nil {
					return err
				}
				if !task.Status.Terminal() {
					tasks = append(tasks, task)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Close is a no-op; the shared backend owns the database handle.
func (r *TaskRepository) Close() error {
	return nil
}
