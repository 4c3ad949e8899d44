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

package core

import "fmt"

// ValidateTask validates a Task according to domain rules.
//
// Validation rules:
//   - DocumentId must not be empty
//   - Status must be a known state of the task's track
//   - Progress must be within 0-100
//
// NOT validated (populated by callbacks):
//   - Message and Error (may be empty at any point)
//   - UpdatedAt (maintained by the repository)
func ValidateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrInvalidTask)
	}

	if task.DocumentId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrEmptyDocumentId)
	}

	if err := ValidateStatus(task.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}

	if task.Status.Kind() != task.Kind {
		return fmt.Errorf("%w: status %q does not belong to kind %q", ErrInvalidTask, task.Status, task.Kind)
	}

	if task.Progress < 0 || task.Progress > 100 {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrInvalidProgress)
	}

	return nil
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty
//   - FileType must not be unknown
//   - Status must be a known state
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}

	if doc.FileType == FileTypeUnknown || doc.FileType == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrUnsupportedFileType)
	}

	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateStatus checks that a TaskStatus is one of the known states.
func ValidateStatus(s TaskStatus) error {
	if _, ok := statusRank[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}
