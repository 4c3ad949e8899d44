package core

import "context"

// StatusCallback is the contract workers use to report task lifecycle
// changes back to the orchestrator. In a single process the orchestrator
// implements it directly; across processes an HTTP client stands in.
//
// Delivery is at-least-once: implementations must tolerate duplicate
// calls, and callers must treat a nil return as "received" rather than
// "applied": stale and regressive reports are discarded on the
// orchestrator side without error.
type StatusCallback interface {
	// Acknowledge signals the worker has picked up the task. Moves a
	// queued task into its first active stage.
	Acknowledge(ctx context.Context, taskID string) error

	// ReportProgress records a stage transition or progress update.
	ReportProgress(ctx context.Context, taskID string, status TaskStatus, progress int, message string) error

	// ReportCompletion marks the task successfully finished. For
	// processing tasks chunkCount is the number of stored chunks; for
	// deletion tasks it is the number of removed vector entries.
	ReportCompletion(ctx context.Context, taskID string, chunkCount int) error

	// ReportFailure marks the task failed with a human-readable reason.
	ReportFailure(ctx context.Context, taskID string, reason string) error
}
