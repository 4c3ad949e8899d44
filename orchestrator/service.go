// Package orchestrator owns the task lifecycle for document processing
// and deletion.
//
// It is the single writer for task and document records: uploads and
// deletion requests create tasks, worker callbacks advance them, and
// every accepted mutation is mirrored onto the document record and
// broadcast through the status relay. Mutations for the same document
// are serialized on striped locks, so lifecycle rules (monotonic
// progress, stale-callback discard, idempotent terminal states, one
// active task per document) hold even when callbacks race.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/queue"
	"github.com/poiesic/docuverse/relay"
	"github.com/poiesic/docuverse/storage"
)

const lockStripes = 64

// defaultMaxFileSize caps uploads at 50 MiB.
const defaultMaxFileSize = 50 << 20

// Service coordinates documents, tasks, the job queue, and the status
// relay. It implements core.StatusCallback for workers.
type Service struct {
	tasks       storage.TaskRepository
	documents   storage.DocumentRepository
	jobs        queue.JobQueue
	relay       *relay.Relay
	uploadsDir  string
	maxFileSize int64
	logger      *slog.Logger
	locks       [lockStripes]sync.Mutex
}

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithUploadsDir sets the directory uploaded files are written to.
// Default is "uploads" under the working directory.
func WithUploadsDir(dir string) Option {
	return func(s *Service) error {
		if dir == "" {
			return fmt.Errorf("uploads directory cannot be empty")
		}
		s.uploadsDir = dir
		return nil
	}
}

// WithMaxFileSize sets the upload size limit in bytes. Zero disables
// the limit.
func WithMaxFileSize(limit int64) Option {
	return func(s *Service) error {
		if limit < 0 {
			return fmt.Errorf("file size limit cannot be negative")
		}
		s.maxFileSize = limit
		return nil
	}
}

// WithRelay sets the status relay events are published to.
// Default is a fresh relay owned by the service.
func WithRelay(r *relay.Relay) Option {
	return func(s *Service) error {
		if r == nil {
			return fmt.Errorf("relay cannot be nil")
		}
		s.relay = r
		return nil
	}
}

// New creates an orchestrator service.
func New(
	tasks storage.TaskRepository,
	documents storage.DocumentRepository,
	jobs queue.JobQueue,
	opts ...Option,
) (*Service, error) {
	if tasks == nil {
		return nil, ErrTaskRepositoryRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if jobs == nil {
		return nil, ErrQueueRequired
	}

	s := &Service{
		tasks:       tasks,
		documents:   documents,
		jobs:        jobs,
		relay:       relay.New(),
		uploadsDir:  "uploads",
		maxFileSize: defaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return s, nil
}

// Relay returns the status relay the service publishes to. Observers
// subscribe here for live task events.
func (s *Service) Relay() *relay.Relay {
	return s.relay
}

// lockFor returns the stripe lock guarding mutations for a document.
func (s *Service) lockFor(documentID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(documentID))
	return &s.locks[h.Sum32()%lockStripes]
}

// CreateUpload validates and stores an uploaded file, creates the
// document record with a queued processing task, and enqueues the job.
func (s *Service) CreateUpload(ctx context.Context, filename string, content []byte) (*core.Document, *core.Task, error) {
	if filename == "" {
		return nil, nil, core.ErrEmptyFilename
	}
	if len(content) == 0 {
		return nil, nil, ErrEmptyFile
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}

	fileType := core.FileTypeFromName(filename)
	if fileType == core.FileTypeUnknown {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFileType, filename)
	}

	docID := uuid.NewString()
	filePath := s.storedFilePath(docID, fileType)
	if err := os.WriteFile(filePath, content, 0o600); err != nil {
		return nil, nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	doc := &core.Document{
		Id:         docID,
		Filename:   filename,
		FileType:   fileType,
		FileSize:   int64(len(content)),
		FileHash:   core.HashContent(content),
		Status:     core.StatusQueued,
		UploadDate: time.Now().UTC(),
	}
	task := &core.Task{
		Id:         uuid.NewString(),
		DocumentId: docID,
		Kind:       core.TaskKindProcess,
		Status:     core.StatusQueued,
		Message:    "queued for processing",
	}

	lock := s.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.documents.PutDocument(ctx, doc); err != nil {
		return nil, nil, err
	}
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return nil, nil, err
	}

	job := &queue.Job{
		TaskId:     task.Id,
		DocumentId: docID,
		Kind:       core.TaskKindProcess,
		FilePath:   filePath,
		FileType:   fileType,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.failTaskLocked(ctx, task, "failed to enqueue processing job")
		return nil, nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.relay.Publish(core.EventForTask(task))
	s.logger.Info("document upload accepted",
		"document_id", docID, "task_id", task.Id,
		"filename", filename, "file_type", fileType, "size", len(content))
	return doc, task, nil
}

// RequestDeletion creates a deletion task for the document and enqueues
// it. Rejected with core.ErrTaskConflict while another task is active.
func (s *Service) RequestDeletion(ctx context.Context, documentID string) (*core.Task, error) {
	if documentID == "" {
		return nil, core.ErrEmptyDocumentId
	}

	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	current, err := s.tasks.GetTaskByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if current != nil && !current.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", core.ErrTaskConflict, current.Id, current.Status)
	}

	task := &core.Task{
		Id:         uuid.NewString(),
		DocumentId: documentID,
		Kind:       core.TaskKindDelete,
		Status:     core.StatusDeleteQueued,
		Message:    "queued for deletion",
	}
	if err := s.tasks.PutTask(ctx, task); err != nil {
		return nil, err
	}

	doc.Status = core.StatusDeleteQueued
	if err := s.documents.PutDocument(ctx, doc); err != nil {
		return nil, err
	}

	job := &queue.Job{
		TaskId:     task.Id,
		DocumentId: documentID,
		Kind:       core.TaskKindDelete,
		FilePath:   s.storedFilePath(documentID, doc.FileType),
		FileType:   doc.FileType,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.failTaskLocked(ctx, task, "failed to enqueue deletion job")
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.relay.Publish(core.EventForTask(task))
	s.logger.Info("document deletion requested", "document_id", documentID, "task_id", task.Id)
	return task, nil
}

// GetDocument retrieves a document by ID.
func (s *Service) GetDocument(ctx context.Context, documentID string) (*core.Document, error) {
	return s.documents.GetDocument(ctx, documentID)
}

// ListDocuments returns all documents, newest first.
func (s *Service) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return s.documents.ListDocuments(ctx)
}

// GetTask retrieves a task by ID.
func (s *Service) GetTask(ctx context.Context, taskID string) (*core.Task, error) {
	return s.tasks.GetTask(ctx, taskID)
}

// GetTaskByDocument retrieves the document's current task.
func (s *Service) GetTaskByDocument(ctx context.Context, documentID string) (*core.Task, error) {
	return s.tasks.GetTaskByDocument(ctx, documentID)
}

func (s *Service) storedFilePath(documentID string, fileType core.FileType) string {
	return filepath.Join(s.uploadsDir, documentID+"."+string(fileType))
}

// failTaskLocked marks a task failed while the document stripe is held.
// Best-effort: storage errors are logged, not returned.
func (s *Service) failTaskLocked(ctx context.Context, task *core.Task, reason string) {
	if task.Kind == core.TaskKindDelete {
		task.Status = core.StatusDeleteFailed
	} else {
		task.Status = core.StatusFailed
	}
	task.Error = reason
	task.Message = reason
	if err := s.tasks.PutTask(ctx, task); err != nil {
		s.logger.Error("failed to persist task failure", "task_id", task.Id, "err", err)
		return
	}
	s.syncDocumentLocked(ctx, task)
	s.relay.Publish(core.EventForTask(task))
}

// syncDocumentLocked mirrors the task's status onto its document record.
// A missing document (already deleted) is not an error.
func (s *Service) syncDocumentLocked(ctx context.Context, task *core.Task) {
	doc, err := s.documents.GetDocument(ctx, task.DocumentId)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("failed to load document for status sync", "document_id", task.DocumentId, "err", err)
		return
	}

	doc.Status = task.Status
	if task.Status == core.StatusFailed || task.Status == core.StatusDeleteFailed {
		doc.ErrorMessage = task.Error
	} else {
		doc.ErrorMessage = ""
	}
	if err := s.documents.PutDocument(ctx, doc); err != nil {
		s.logger.Error("failed to sync document status", "document_id", doc.Id, "err", err)
	}
}
