package vector

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/docuverse/core"
)

type memoryEntry struct {
	chunk core.Chunk
	vec   []float32
}

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Upsert(ctx context.Context, chunk core.Chunk, vec []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	s.entries[chunk.Id] = memoryEntry{chunk: chunk, vec: stored}
	return nil
}

func (s *MemoryStore) DeleteByPrefix(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	prefix := documentID + ":"
	removed := 0
	for id := range s.entries {
		if strings.HasPrefix(id, prefix) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Search(ctx context.Context, vec []float32, topK int) ([]*Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	matches := make([]*Match, 0, len(s.entries))
	for _, entry := range s.entries {
		matches = append(matches, &Match{
			Chunk: entry.chunk,
			Score: cosineSimilarity(vec, entry.vec),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Count(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	prefix := documentID + ":"
	count := 0
	for id := range s.entries {
		if strings.HasPrefix(id, prefix) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
