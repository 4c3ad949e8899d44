// Package relay implements best-effort fan-out of status events to
// connected observers.
//
// The relay keeps no event history: an observer that subscribes after an
// event was published simply never sees it and must consult the read API
// for current state. Delivery to each observer is independent; a slow or
// dead observer never blocks the others.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/docuverse/core"
)

const defaultBufferSize = 64

// Relay maintains the registry of connected observers and broadcasts
// status events to a snapshot of that registry.
type Relay struct {
	mu      sync.RWMutex
	subs    map[chan core.StatusEvent]struct{}
	done    chan struct{}
	bufSize int
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithBufferSize sets the per-observer channel buffer. An observer whose
// buffer is full skips events rather than blocking the broadcast.
func WithBufferSize(size int) Option {
	return func(r *Relay) {
		if size > 0 {
			r.bufSize = size
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a relay with an empty observer registry.
func New(opts ...Option) *Relay {
	r := &Relay{
		subs:    make(map[chan core.StatusEvent]struct{}),
		done:    make(chan struct{}),
		bufSize: defaultBufferSize,
		logger:  slog.Default().With("component", "relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers an observer and returns its event channel.
// The observer is removed and its channel closed when ctx ends or the
// relay shuts down. If the relay is already shut down the returned
// channel is closed immediately.
func (r *Relay) Subscribe(ctx context.Context) <-chan core.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		ch := make(chan core.StatusEvent)
		close(ch)
		return ch
	default:
	}

	sub := make(chan core.StatusEvent, r.bufSize)
	r.subs[sub] = struct{}{}
	r.logger.Debug("observer subscribed", "observers", len(r.subs))

	go func() {
		select {
		case <-ctx.Done():
		case <-r.done:
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		select {
		case <-r.done:
			return
		default:
		}

		if _, ok := r.subs[sub]; ok {
			delete(r.subs, sub)
			close(sub)
			r.logger.Debug("observer unsubscribed", "observers", len(r.subs))
		}
	}()

	return sub
}

// Publish broadcasts an event to every observer registered at call time.
// Delivery is non-blocking per observer: a full buffer means that
// observer misses this event, which is acceptable because the task store
// remains the source of truth.
func (r *Relay) Publish(event core.StatusEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	select {
	case <-r.done:
		return
	default:
	}

	// Unsubscribe and Shutdown close observer channels under the write
	// lock, so the sends must stay under the read lock. They never block:
	// a full buffer falls through to the default case.
	skipped := 0
	for sub := range r.subs {
		select {
		case sub <- event:
		default:
			skipped++
		}
	}
	if skipped > 0 {
		r.logger.Debug("skipped slow observers", "skipped", skipped, "event", event.Type, "task", event.TaskId)
	}
}

// ObserverCount returns the number of currently registered observers.
func (r *Relay) ObserverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Shutdown closes every observer channel and stops accepting subscriptions.
// Safe to call more than once.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}
	close(r.done)

	for sub := range r.subs {
		delete(r.subs, sub)
		close(sub)
	}
}
