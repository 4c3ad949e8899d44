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


// Package storage provides the storage abstraction layer for docuverse.
//
// This package defines the repository interfaces the orchestrator persists
// task and document records through. It decouples the task state machine
// from the storage engine so backends can be swapped without touching
// lifecycle logic.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return these interfaces rather
// than concrete types:
//
//	repo, err := badger.NewTaskRepository(backend)  // returns storage.TaskRepository
//
// This keeps callers decoupled from BadgerDB specifics and lets tests use
// in-memory backends without modification.
//
// # Ownership
//
// The orchestrator exclusively owns the records stored here. Workers never
// write to these repositories; they propose state changes through the
// callback API, and the orchestrator applies the accepted ones.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
