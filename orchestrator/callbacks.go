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

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/storage"
)

// The four callback methods implement core.StatusCallback. Workers may
// deliver duplicates or out-of-date reports; anything stale, regressive,
// or aimed at a terminal task is discarded with a log line and a nil
// return, so workers never retry reports the orchestrator has already
// ruled on.

// resolveActive loads the task and verifies it is still the document's
// current task. Must be called with the document's stripe lock held.
func (s *Service) resolveActive(ctx context.Context, taskID string) (*core.Task, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: task %s not found", core.ErrStaleCallback, taskID)
	}
	if err != nil {
		return nil, err
	}

	current, err := s.tasks.GetTaskByDocument(ctx, task.DocumentId)
	if err != nil {
		return nil, err
	}
	if current.Id != task.Id {
		return nil, fmt.Errorf("%w: task %s superseded by %s", core.ErrStaleCallback, task.Id, current.Id)
	}
	return task, nil
}

// lockTask looks up the task's document to pick the stripe, locks it,
// and re-resolves the task under the lock.
func (s *Service) lockTask(ctx context.Context, taskID string) (*core.Task, func(), error) {
	peek, err := s.tasks.GetTask(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: task %s not found", core.ErrStaleCallback, taskID)
	}
	if err != nil {
		return nil, nil, err
	}

	lock := s.lockFor(peek.DocumentId)
	lock.Lock()

	task, err := s.resolveActive(ctx, taskID)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return task, lock.Unlock, nil
}

// discard logs a dropped callback. Stale and regressive reports are not
// worker errors, so the caller returns nil after this.
func (s *Service) discard(taskID, callback, reason string) {
	s.logger.Warn("discarding status callback",
		"task_id", taskID, "callback", callback, "reason", reason)
}

// Acknowledge moves a queued task into its first active stage. Duplicate
// acknowledgements after the task has advanced are discarded.
func (s *Service) Acknowledge(ctx context.Context, taskID string) error {
	task, unlock, err := s.lockTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrStaleCallback) {
			s.discard(taskID, "acknowledge", err.Error())
			return nil
		}
		return err
	}
	defer unlock()

	if task.Status.Terminal() {
		s.discard(taskID, "acknowledge", "task already terminal")
		return nil
	}

	target := core.StatusParsing
	message := "processing started"
	if task.Kind == core.TaskKindDelete {
		target = core.StatusDeleting
		message = "deletion started"
	}
	if !core.CanTransition(task.Status, target) {
		s.discard(taskID, "acknowledge", fmt.Sprintf("cannot move %s to %s", task.Status, target))
		return nil
	}

	task.Status = target
	task.Message = message
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return err
	}
	s.syncDocumentLocked(ctx, task)
	s.relay.Publish(core.EventForTask(task))
	return nil
}

// ReportProgress records a stage transition or progress update. Progress
// is monotonic within a task: equal values are accepted, lower values
// are discarded. Terminal statuses must go through ReportCompletion or
// ReportFailure and are rejected here.
func (s *Service) ReportProgress(ctx context.Context, taskID string, status core.TaskStatus, progress int, message string) error {
	if err := core.ValidateStatus(status); err != nil {
		return err
	}
	if status.Terminal() {
		return fmt.Errorf("%w: %s is terminal, use completion or failure", core.ErrInvalidStatus, status)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: %d", core.ErrInvalidProgress, progress)
	}

	task, unlock, err := s.lockTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrStaleCallback) {
			s.discard(taskID, "progress", err.Error())
			return nil
		}
		return err
	}
	defer unlock()

	if task.Status.Terminal() {
		s.discard(taskID, "progress", "task already terminal")
		return nil
	}
	if !core.CanTransition(task.Status, status) {
		s.discard(taskID, "progress", fmt.Sprintf("cannot move %s to %s", task.Status, status))
		return nil
	}
	if progress < task.Progress {
		s.discard(taskID, "progress", fmt.Sprintf("progress regression %d -> %d", task.Progress, progress))
		return nil
	}

	task.Status = status
	task.Progress = progress
	task.Message = message
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return err
	}
	s.syncDocumentLocked(ctx, task)
	s.relay.Publish(core.EventForTask(task))
	return nil
}

// ReportCompletion marks the task finished. A second completion for an
// already-terminal task is discarded, so the recorded chunk count never
// double-counts. Completing a deletion task removes the document record.
func (s *Service) ReportCompletion(ctx context.Context, taskID string, chunkCount int) error {
	task, unlock, err := s.lockTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrStaleCallback) {
			s.discard(taskID, "completion", err.Error())
			return nil
		}
		return err
	}
	defer unlock()

	if task.Status.Terminal() {
		s.discard(taskID, "completion", "task already terminal")
		return nil
	}

	if task.Kind == core.TaskKindDelete {
		return s.completeDeletionLocked(ctx, task, chunkCount)
	}

	task.Status = core.StatusCompleted
	task.Progress = 100
	task.Message = fmt.Sprintf("processed %d chunks", chunkCount)
	task.Error = ""
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return err
	}

	doc, err := s.documents.GetDocument(ctx, task.DocumentId)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if doc != nil {
		doc.Status = core.StatusCompleted
		doc.ChunkCount = chunkCount
		doc.ErrorMessage = ""
		if err := s.documents.PutDocument(ctx, doc); err != nil {
			return err
		}
	}

	s.relay.Publish(core.EventForTask(task))
	s.logger.Info("document processing completed",
		"document_id", task.DocumentId, "task_id", task.Id, "chunks", chunkCount)
	return nil
}

// completeDeletionLocked finalizes a deletion task: the document record
// is removed and the terminal task is kept for status queries.
func (s *Service) completeDeletionLocked(ctx context.Context, task *core.Task, removed int) error {
	task.Status = core.StatusDeleteCompleted
	task.Progress = 100
	task.Message = fmt.Sprintf("removed %d stored chunks", removed)
	task.Error = ""
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return err
	}

	if err := s.documents.DeleteDocument(ctx, task.DocumentId); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	s.relay.Publish(core.EventForTask(task))
	s.logger.Info("document deleted", "document_id", task.DocumentId, "task_id", task.Id)
	return nil
}

// ReportFailure marks the task failed. Failures of already-terminal
// tasks are discarded.
func (s *Service) ReportFailure(ctx context.Context, taskID string, reason string) error {
	task, unlock, err := s.lockTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, core.ErrStaleCallback) {
			s.discard(taskID, "failure", err.Error())
			return nil
		}
		return err
	}
	defer unlock()

	if task.Status.Terminal() {
		s.discard(taskID, "failure", "task already terminal")
		return nil
	}

	s.failTaskLocked(ctx, task, reason)
	s.logger.Warn("task failed",
		"document_id", task.DocumentId, "task_id", task.Id, "kind", task.Kind, "reason", reason)
	return nil
}
