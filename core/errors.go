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

import "errors"

// Domain errors
var (
	// ErrInvalidTask indicates a Task failed validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrTaskConflict indicates a task creation was rejected because the
	// document already has a non-terminal task.
	ErrTaskConflict = errors.New("document already has an active task")

	// ErrStaleCallback indicates a callback referenced a task that is no
	// longer the document's active task. Stale callbacks are discarded.
	ErrStaleCallback = errors.New("stale callback")

	// ErrInvalidProgress indicates a progress value outside 0-100.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrInvalidStatus indicates an unknown task status value.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrEmptyDocumentId indicates a record is missing its document reference.
	ErrEmptyDocumentId = errors.New("document id cannot be empty")

	// ErrEmptyFilename indicates a document has no filename.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrUnsupportedFileType indicates an upload with a file type outside
	// the supported set. This is a permanent error.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// PermanentError marks a pipeline error that must not be retried:
// corrupt input, unsupported formats, or a provider rejecting the input
// outright. Transient errors are plain errors and go through the stage
// retry policy.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsPermanent reports true for it.
// Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
