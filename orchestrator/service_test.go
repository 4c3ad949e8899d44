package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/queue"
	"github.com/poiesic/docuverse/storage"
	"github.com/poiesic/docuverse/storage/badger"
)

func newTestService(t *testing.T) (*Service, *queue.MemoryQueue) {
	t.Helper()

	tasks, docs, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	jobs := queue.NewMemoryQueue()
	t.Cleanup(func() { jobs.Close() })

	svc, err := New(tasks, docs, jobs, WithUploadsDir(t.TempDir()))
	require.NoError(t, err)
	return svc, jobs
}

func uploadTestDocument(t *testing.T, svc *Service) (*core.Document, *core.Task) {
	t.Helper()
	doc, task, err := svc.CreateUpload(context.Background(), "report.txt", []byte("some document content"))
	require.NoError(t, err)
	return doc, task
}

func TestCreateUpload(t *testing.T) {
	svc, jobs := newTestService(t)
	ctx := context.Background()

	doc, task, err := svc.CreateUpload(ctx, "report.txt", []byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, core.StatusQueued, doc.Status)
	assert.Equal(t, core.FileTypeTXT, doc.FileType)
	assert.Equal(t, int64(11), doc.FileSize)
	assert.NotEmpty(t, doc.FileHash)
	assert.Equal(t, core.TaskKindProcess, task.Kind)
	assert.Equal(t, core.StatusQueued, task.Status)
	assert.Equal(t, 0, task.Progress)

	job, err := jobs.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.Id, job.TaskId)
	assert.Equal(t, doc.Id, job.DocumentId)
	assert.Equal(t, core.TaskKindProcess, job.Kind)
	assert.NotEmpty(t, job.FilePath)
}

func TestCreateUploadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.CreateUpload(ctx, "", []byte("content"))
	assert.ErrorIs(t, err, core.ErrEmptyFilename)

	_, _, err = svc.CreateUpload(ctx, "report.txt", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, _, err = svc.CreateUpload(ctx, "binary.exe", []byte("content"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFileType)
}

func TestCreateUploadSizeLimit(t *testing.T) {
	tasks, docs, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	jobs := queue.NewMemoryQueue()
	defer jobs.Close()

	svc, err := New(tasks, docs, jobs, WithUploadsDir(t.TempDir()), WithMaxFileSize(8))
	require.NoError(t, err)

	_, _, err = svc.CreateUpload(context.Background(), "report.txt", []byte("this is more than eight bytes"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAcknowledgeStartsProcessing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)

	require.NoError(t, svc.Acknowledge(ctx, task.Id))

	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusParsing, got.Status)
	assert.Equal(t, 0, got.Progress)

	gotDoc, err := svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusParsing, gotDoc.Status)
}

func TestProgressIsMonotonic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.Acknowledge(ctx, task.Id))

	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusChunking, 30, "chunking"))

	// lower progress is discarded without error
	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusChunking, 20, "rewind"))
	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, "chunking", got.Message)

	// equal progress is accepted
	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusChunking, 30, "still chunking"))
	got, err = svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, "still chunking", got.Message)

	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusEmbedding, 80, "embedding"))
	got, err = svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, core.StatusEmbedding, got.Status)
}

func TestProgressRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, task := uploadTestDocument(t, svc)

	err := svc.ReportProgress(ctx, task.Id, core.StatusParsing, 150, "")
	assert.ErrorIs(t, err, core.ErrInvalidProgress)

	err = svc.ReportProgress(ctx, task.Id, core.StatusCompleted, 100, "")
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	err = svc.ReportProgress(ctx, task.Id, core.TaskStatus("bogus"), 10, "")
	assert.ErrorIs(t, err, core.ErrInvalidStatus)
}

func TestStatusRegressionsAreDiscarded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.Acknowledge(ctx, task.Id))
	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusEmbedding, 80, "embedding"))

	// a late parsing report must not move the task backwards
	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusParsing, 80, "late"))
	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEmbedding, got.Status)
	assert.Equal(t, "embedding", got.Message)

	// duplicate acknowledge after progress is discarded too
	require.NoError(t, svc.Acknowledge(ctx, task.Id))
	got, err = svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEmbedding, got.Status)
}

func TestCompletionIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.Acknowledge(ctx, task.Id))

	require.NoError(t, svc.ReportCompletion(ctx, task.Id, 12))

	gotDoc, err := svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, gotDoc.Status)
	assert.Equal(t, 12, gotDoc.ChunkCount)

	// a duplicate completion must not double the chunk count
	require.NoError(t, svc.ReportCompletion(ctx, task.Id, 12))
	gotDoc, err = svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, 12, gotDoc.ChunkCount)

	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestFailureRecordsReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.Acknowledge(ctx, task.Id))

	require.NoError(t, svc.ReportFailure(ctx, task.Id, "parser exploded"))

	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "parser exploded", got.Error)

	gotDoc, err := svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, gotDoc.Status)
	assert.Equal(t, "parser exploded", gotDoc.ErrorMessage)

	// terminal tasks ignore late callbacks
	require.NoError(t, svc.ReportCompletion(ctx, task.Id, 7))
	got, err = svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)

	gotDoc, err = svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, 0, gotDoc.ChunkCount)
}

func TestDeletionConflictsWithActiveTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.Acknowledge(ctx, task.Id))

	_, err := svc.RequestDeletion(ctx, doc.Id)
	assert.ErrorIs(t, err, core.ErrTaskConflict)

	require.NoError(t, svc.ReportCompletion(ctx, task.Id, 3))

	delTask, err := svc.RequestDeletion(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.TaskKindDelete, delTask.Kind)
	assert.Equal(t, core.StatusDeleteQueued, delTask.Status)

	// a second deletion while the first is active conflicts too
	_, err = svc.RequestDeletion(ctx, doc.Id)
	assert.ErrorIs(t, err, core.ErrTaskConflict)
}

func TestDeletionCompletionRemovesDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.ReportCompletion(ctx, task.Id, 3))

	delTask, err := svc.RequestDeletion(ctx, doc.Id)
	require.NoError(t, err)
	require.NoError(t, svc.Acknowledge(ctx, delTask.Id))
	require.NoError(t, svc.ReportCompletion(ctx, delTask.Id, 3))

	_, err = svc.GetDocument(ctx, doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := svc.GetTask(ctx, delTask.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDeleteCompleted, got.Status)
}

func TestStaleCallbacksAreDiscarded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)
	require.NoError(t, svc.ReportFailure(ctx, task.Id, "worker crashed"))

	delTask, err := svc.RequestDeletion(ctx, doc.Id)
	require.NoError(t, err)

	// the processing task has been superseded by the deletion task
	require.NoError(t, svc.ReportProgress(ctx, task.Id, core.StatusParsing, 10, "late"))
	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)

	current, err := svc.GetTaskByDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, delTask.Id, current.Id)

	// callbacks for unknown tasks are discarded, not errors
	require.NoError(t, svc.Acknowledge(ctx, "no-such-task"))
}

func TestEventsReachRelayObservers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := svc.Relay().Subscribe(ctx)
	_, task := uploadTestDocument(t, svc)

	select {
	case event := <-events:
		assert.Equal(t, core.EventQueued, event.Type)
		assert.Equal(t, task.Id, event.TaskId)
		assert.Equal(t, core.StatusQueued, event.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued event")
	}

	require.NoError(t, svc.Acknowledge(ctx, task.Id))
	select {
	case event := <-events:
		assert.Equal(t, core.EventProgress, event.Type)
		assert.Equal(t, core.StatusParsing, event.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestSweepStaleTasks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc, task := uploadTestDocument(t, svc)

	// fresh tasks are left alone
	swept, err := svc.SweepStaleTasks(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	time.Sleep(20 * time.Millisecond)
	swept, err = svc.SweepStaleTasks(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	got, err := svc.GetTask(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)

	gotDoc, err := svc.GetDocument(ctx, doc.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, gotDoc.Status)
	assert.NotEmpty(t, gotDoc.ErrorMessage)
}
