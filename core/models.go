package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// TaskKind identifies the operation a task performs on a document.
type TaskKind string

const (
	// TaskKindProcess ingests a document into searchable chunks.
	TaskKindProcess TaskKind = "process"
	// TaskKindDelete removes a document and its stored vectors.
	TaskKindDelete TaskKind = "delete"
)

// TaskStatus is the lifecycle state of a task.
//
// Processing tasks move queued -> parsing -> chunking -> embedding ->
// storing -> completed, with failed reachable from any non-terminal state.
// Deletion tasks move delete_queued -> deleting -> delete_completed or
// delete_failed.
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusParsing   TaskStatus = "parsing"
	StatusChunking  TaskStatus = "chunking"
	StatusEmbedding TaskStatus = "embedding"
	StatusStoring   TaskStatus = "storing"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"

	StatusDeleteQueued    TaskStatus = "delete_queued"
	StatusDeleting        TaskStatus = "deleting"
	StatusDeleteCompleted TaskStatus = "delete_completed"
	StatusDeleteFailed    TaskStatus = "delete_failed"
)

// statusRank orders the states within each track so regressions can be
// rejected. Terminal states rank above every stage.
var statusRank = map[TaskStatus]int{
	StatusQueued:    0,
	StatusParsing:   1,
	StatusChunking:  2,
	StatusEmbedding: 3,
	StatusStoring:   4,
	StatusCompleted: 5,
	StatusFailed:    5,

	StatusDeleteQueued:    0,
	StatusDeleting:        1,
	StatusDeleteCompleted: 2,
	StatusDeleteFailed:    2,
}

// Terminal reports whether the status is an end state. No callback may
// move a task out of a terminal status.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDeleteCompleted, StatusDeleteFailed:
		return true
	}
	return false
}

// Kind returns the task track the status belongs to.
func (s TaskStatus) Kind() TaskKind {
	if strings.HasPrefix(string(s), "delete") {
		return TaskKindDelete
	}
	return TaskKindProcess
}

// CanTransition reports whether a task may move from one status to another.
// Failure states are reachable from any non-terminal state of the same
// track; otherwise the rank must not decrease.
func CanTransition(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	if from.Kind() != to.Kind() {
		return false
	}
	if to == StatusFailed || to == StatusDeleteFailed {
		return true
	}
	return statusRank[to] >= statusRank[from]
}

// FileType is the closed set of document formats the pipeline accepts.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeTXT      FileType = "txt"
	FileTypeMarkdown FileType = "md"
	FileTypeCSV      FileType = "csv"
	FileTypeUnknown  FileType = "unknown"
)

// FileTypeFromName maps a filename extension to a FileType.
// Unrecognized extensions map to FileTypeUnknown.
func FileTypeFromName(filename string) FileType {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return FileTypeUnknown
	}
	switch strings.ToLower(filename[idx+1:]) {
	case "pdf":
		return FileTypePDF
	case "txt", "text", "log":
		return FileTypeTXT
	case "md", "markdown":
		return FileTypeMarkdown
	case "csv":
		return FileTypeCSV
	}
	return FileTypeUnknown
}

// Task is the persisted record of one processing or deletion job.
// At most one non-terminal task exists per document at any time; a new
// task may only be created once the previous one is terminal.
type Task struct {
	Id         string
	DocumentId string
	Kind       TaskKind
	Status     TaskStatus
	Progress   int // 0-100, monotonic non-decreasing within the task's lifetime
	Message    string
	Error      string // empty when no error has been recorded
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Document is the user-visible record of an uploaded file.
// Status and ChunkCount are mutated only through task callbacks.
type Document struct {
	Id           string
	Filename     string
	FileType     FileType
	FileSize     int64
	FileHash     string
	Status       TaskStatus
	ChunkCount   int
	ErrorMessage string
	UploadDate   time.Time
}

// Chunk is one unit of extracted content from a document. Chunk IDs are
// derived deterministically from the document ID and index so re-running
// the pipeline overwrites rather than duplicates stored vectors.
type Chunk struct {
	Id         string
	DocumentId string
	ChunkIndex int
	Content    string
	PageNumber int // 0 when the source format has no page structure
}

// ChunkID derives the deterministic identifier for a chunk.
func ChunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// EventType classifies a StatusEvent for observers.
type EventType string

const (
	EventQueued       EventType = "queued"
	EventProgress     EventType = "progress"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
	EventDeleted      EventType = "deleted"
	EventDeleteFailed EventType = "delete_failed"
)

// EventTypeForStatus maps a task status to the event type broadcast to
// observers when the task enters that status.
func EventTypeForStatus(s TaskStatus) EventType {
	switch s {
	case StatusQueued, StatusDeleteQueued:
		return EventQueued
	case StatusCompleted:
		return EventCompleted
	case StatusFailed:
		return EventFailed
	case StatusDeleteCompleted:
		return EventDeleted
	case StatusDeleteFailed:
		return EventDeleteFailed
	}
	return EventProgress
}

// StatusEvent is an ephemeral notification derived from a task mutation.
// Events are fanned out best-effort and never persisted; the task store
// remains the source of truth for observers that miss one.
type StatusEvent struct {
	Type       EventType  `json:"type"`
	TaskId     string     `json:"task_id"`
	DocumentId string     `json:"document_id"`
	Status     TaskStatus `json:"status"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EventForTask builds the StatusEvent describing a task's current state.
func EventForTask(task *Task) StatusEvent {
	return StatusEvent{
		Type:       EventTypeForStatus(task.Status),
		TaskId:     task.Id,
		DocumentId: task.DocumentId,
		Status:     task.Status,
		Progress:   task.Progress,
		Message:    task.Message,
		Error:      task.Error,
	}
}

// HashContent computes a BLAKE2b content hash, hex encoded.
// Identical file contents always produce identical hashes.
func HashContent(data []byte) string {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
