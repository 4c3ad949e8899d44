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

import "errors"

var (
	// ErrTaskRepositoryRequired indicates no task repository was provided.
	ErrTaskRepositoryRequired = errors.New("task repository is required")

	// ErrDocumentRepositoryRequired indicates no document repository was provided.
	ErrDocumentRepositoryRequired = errors.New("document repository is required")

	// ErrQueueRequired indicates no job queue was provided.
	ErrQueueRequired = errors.New("job queue is required")

	// ErrEmptyFile indicates an upload with no content.
	ErrEmptyFile = errors.New("uploaded file is empty")

	// ErrFileTooLarge indicates an upload exceeding the size limit.
	ErrFileTooLarge = errors.New("uploaded file exceeds the size limit")
)
