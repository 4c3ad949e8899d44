package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// DefaultSweepInterval is how often the background sweeper runs.
const DefaultSweepInterval = time.Minute

// DefaultAbandonAfter is how long a task may go without a status update
// before the sweeper declares it abandoned.
const DefaultAbandonAfter = 30 * time.Minute

// SweepStaleTasks fails every active task whose last update is older
// than the cutoff. Workers that crashed or lost connectivity leave tasks
// stranded in an active status; without the sweep the document would
// block new tasks forever. Returns the number of tasks failed.
func (s *Service) SweepStaleTasks(ctx context.Context, olderThan time.Duration) (int, error) {
	active, err := s.tasks.ListActiveTasks(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	swept := 0
	for _, candidate := range active {
		if candidate.UpdatedAt.After(cutoff) {
			continue
		}

		lock := s.lockFor(candidate.DocumentId)
		lock.Lock()
		// re-check under the lock: a callback may have advanced the task
		task, err := s.resolveActive(ctx, candidate.Id)
		if err != nil || task.Status.Terminal() || task.UpdatedAt.After(cutoff) {
			lock.Unlock()
			continue
		}

		reason := fmt.Sprintf("task abandoned: no status update since %s", task.UpdatedAt.UTC().Format(time.RFC3339))
		s.failTaskLocked(ctx, task, reason)
		lock.Unlock()

		swept++
		s.logger.Warn("swept abandoned task",
			"task_id", task.Id, "document_id", task.DocumentId, "last_update", task.UpdatedAt)
	}
	return swept, nil
}

// StartSweeper runs SweepStaleTasks on a ticker until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if olderThan <= 0 {
		olderThan = DefaultAbandonAfter
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepStaleTasks(ctx, olderThan); err != nil {
					s.logger.Error("stale task sweep failed", "err", err)
				}
			}
		}
	}()
}
