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


// Package worker executes queued document jobs.
//
// The executor dequeues jobs and runs them on a shared goroutine pool.
// Each pipeline stage (parse, chunk, embed, store) retries transient
// failures under the stage retry policy; permanent failures and
// exhausted retries fail the task through the status callback. A bad
// document can fail its own task but never the worker: panics are
// contained per job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/docuverse/ai"
	"github.com/poiesic/docuverse/backoff"
	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/parser"
	"github.com/poiesic/docuverse/queue"
	"github.com/poiesic/docuverse/vector"
)

// Stage weights. Progress reported after a stage finishes is the sum of
// the weights of all finished stages, so observers see the cumulative
// sequence 0, 20, 30, 80, 100.
const (
	progressParsed   = 20 // parse done, chunking next
	progressChunked  = 30 // chunking done, embedding next
	progressEmbedded = 80 // embedding done, storing next
)

// embedBatchSize is how many chunks are sent to the embedder per request.
const embedBatchSize = 16

var (
	// ErrQueueRequired indicates no job queue was provided.
	ErrQueueRequired = errors.New("job queue is required")

	// ErrEmbedderRequired indicates no embedder was provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrVectorStoreRequired indicates no vector store was provided.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrCallbackRequired indicates no status callback was provided.
	ErrCallbackRequired = errors.New("status callback is required")
)

// Executor consumes jobs from the queue and runs document pipelines.
type Executor struct {
	jobs     queue.JobQueue
	parsers  *parser.Registry
	embedder ai.Embedder
	vectors  vector.Store
	callback core.StatusCallback
	chunker  *Chunker
	retry    backoff.Policy
	pool     *ants.Pool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// Option configures an Executor.
type Option func(*Executor) error

// WithPoolSize sets the number of jobs processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Executor) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the per-stage retry policy.
// Default is backoff.DefaultPolicy().
func WithRetryPolicy(policy backoff.Policy) Option {
	return func(e *Executor) error {
		e.retry = policy
		return nil
	}
}

// WithChunker sets the chunker used for splitting parsed text.
func WithChunker(c *Chunker) Option {
	return func(e *Executor) error {
		if c == nil {
			return fmt.Errorf("chunker cannot be nil")
		}
		e.chunker = c
		return nil
	}
}

// NewExecutor creates a worker executor.
func NewExecutor(
	jobs queue.JobQueue,
	parsers *parser.Registry,
	embedder ai.Embedder,
	vectors vector.Store,
	callback core.StatusCallback,
	opts ...Option,
) (*Executor, error) {
	if jobs == nil {
		return nil, ErrQueueRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if callback == nil {
		return nil, ErrCallbackRequired
	}
	if parsers == nil {
		parsers = parser.DefaultRegistry()
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		jobs:     jobs,
		parsers:  parsers,
		embedder: embedder,
		vectors:  vectors,
		callback: callback,
		chunker:  NewChunker(defaultChunkSize, defaultChunkOverlap),
		retry:    backoff.DefaultPolicy(),
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return e, nil
}

// Run consumes jobs until ctx is cancelled or the queue closes. Jobs
// already dispatched to the pool are allowed to finish.
func (e *Executor) Run(ctx context.Context) error {
	for {
		job, err := e.jobs.Dequeue(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, queue.ErrQueueClosed) {
			e.wg.Wait()
			return nil
		}
		if err != nil {
			e.logger.Error("failed to dequeue job", "err", err)
			continue
		}

		e.wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer e.wg.Done()
			e.execute(ctx, job)
		})
		if submitErr != nil {
			e.wg.Done()
			e.logger.Error("failed to submit job to pool", "task_id", job.TaskId, "err", submitErr)
			e.reportFailure(ctx, job, "worker pool rejected the job")
		}
	}
}

// Release shuts down the goroutine pool. The executor must not be used
// after calling Release.
func (e *Executor) Release() {
	e.wg.Wait()
	if e.pool != nil {
		e.pool.Release()
	}
}

// execute runs one job, containing any panic to that job.
func (e *Executor) execute(ctx context.Context, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while processing job",
				"task_id", job.TaskId, "document_id", job.DocumentId, "panic", r)
			e.reportFailure(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch job.Kind {
	case core.TaskKindDelete:
		e.runDeletion(ctx, job)
	default:
		e.runPipeline(ctx, job)
	}
}

// runPipeline executes parse -> chunk -> embed -> store for one document.
func (e *Executor) runPipeline(ctx context.Context, job *queue.Job) {
	if err := e.callback.Acknowledge(ctx, job.TaskId); err != nil {
		e.logger.Error("failed to acknowledge task", "task_id", job.TaskId, "err", err)
		return
	}
	log := e.logger.With("task_id", job.TaskId, "document_id", job.DocumentId)

	// parse
	var segments []parser.Segment
	err := e.retry.Do(ctx, func() error {
		var parseErr error
		segments, parseErr = e.parsers.ParseFile(ctx, job.FilePath, job.FileType)
		return parseErr
	})
	if err != nil {
		e.reportFailure(ctx, job, fmt.Sprintf("parsing failed: %v", err))
		return
	}
	e.reportProgress(ctx, job, core.StatusChunking, progressParsed,
		fmt.Sprintf("parsed %d segments", len(segments)))

	// chunk
	chunks := e.chunker.Split(job.DocumentId, segments)
	if len(chunks) == 0 {
		e.reportFailure(ctx, job, "document produced no chunks")
		return
	}
	e.reportProgress(ctx, job, core.StatusEmbedding, progressChunked,
		fmt.Sprintf("split into %d chunks", len(chunks)))

	// embed in batches
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}

		var batch [][]float32
		err := e.retry.Do(ctx, func() error {
			var embedErr error
			batch, embedErr = e.embedder.EmbedTexts(ctx, texts)
			return embedErr
		})
		if err != nil {
			e.reportFailure(ctx, job, fmt.Sprintf("embedding failed at chunk %d: %v", start, err))
			return
		}
		if len(batch) != len(texts) {
			e.reportFailure(ctx, job, fmt.Sprintf("embedder returned %d vectors for %d chunks", len(batch), len(texts)))
			return
		}
		vectors = append(vectors, batch...)
	}
	e.reportProgress(ctx, job, core.StatusStoring, progressEmbedded,
		fmt.Sprintf("embedded %d chunks", len(chunks)))

	// store: purge leftovers from any previous run first, so a rerun
	// of a now-shorter document leaves no orphaned high-index chunks
	err = e.retry.Do(ctx, func() error {
		_, purgeErr := e.vectors.DeleteByPrefix(ctx, job.DocumentId)
		return purgeErr
	})
	if err != nil {
		e.reportFailure(ctx, job, fmt.Sprintf("failed to purge previous chunks: %v", err))
		return
	}
	for i, chunk := range chunks {
		err := e.retry.Do(ctx, func() error {
			return e.vectors.Upsert(ctx, chunk, vectors[i])
		})
		if err != nil {
			e.cleanupPartial(ctx, job)
			e.reportFailure(ctx, job, fmt.Sprintf("storing failed at chunk %d: %v", i, err))
			return
		}
	}

	if err := e.callback.ReportCompletion(ctx, job.TaskId, len(chunks)); err != nil {
		log.Error("failed to report completion", "err", err)
		return
	}
	log.Info("document processed", "chunks", len(chunks))
}

// runDeletion removes a document's stored vectors and its uploaded file.
func (e *Executor) runDeletion(ctx context.Context, job *queue.Job) {
	if err := e.callback.Acknowledge(ctx, job.TaskId); err != nil {
		e.logger.Error("failed to acknowledge task", "task_id", job.TaskId, "err", err)
		return
	}

	var removed int
	err := e.retry.Do(ctx, func() error {
		var delErr error
		removed, delErr = e.vectors.DeleteByPrefix(ctx, job.DocumentId)
		return delErr
	})
	if err != nil {
		e.reportFailure(ctx, job, fmt.Sprintf("failed to delete stored chunks: %v", err))
		return
	}

	if job.FilePath != "" {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove stored file", "path", job.FilePath, "err", err)
		}
	}

	if err := e.callback.ReportCompletion(ctx, job.TaskId, removed); err != nil {
		e.logger.Error("failed to report completion", "task_id", job.TaskId, "err", err)
		return
	}
	e.logger.Info("document deleted", "document_id", job.DocumentId, "removed", removed)
}

// cleanupPartial removes whatever a failed store stage managed to write,
// so a failed task leaves no stored vectors behind.
func (e *Executor) cleanupPartial(ctx context.Context, job *queue.Job) {
	if _, err := e.vectors.DeleteByPrefix(ctx, job.DocumentId); err != nil {
		e.logger.Warn("failed to clean up partial chunks", "document_id", job.DocumentId, "err", err)
	}
}

func (e *Executor) reportProgress(ctx context.Context, job *queue.Job, status core.TaskStatus, progress int, message string) {
	if err := e.callback.ReportProgress(ctx, job.TaskId, status, progress, message); err != nil {
		e.logger.Error("failed to report progress",
			"task_id", job.TaskId, "status", status, "err", err)
	}
}

func (e *Executor) reportFailure(ctx context.Context, job *queue.Job, reason string) {
	if err := e.callback.ReportFailure(ctx, job.TaskId, reason); err != nil {
		e.logger.Error("failed to report failure", "task_id", job.TaskId, "err", err)
	}
	e.logger.Warn("job failed", "task_id", job.TaskId, "document_id", job.DocumentId, "reason", reason)
}
