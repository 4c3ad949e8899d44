// Package vector defines the vector store capability consumed by the
// pipeline, with Redis, Postgres/pgvector, and in-memory implementations.
//
// Entries are keyed by deterministic chunk IDs (documentID:chunkIndex),
// so Upsert is idempotent by contract: re-running a pipeline overwrites
// prior entries instead of duplicating them, and a whole document can be
// purged by ID prefix without enumerating its chunks.
package vector

import (
	"context"
	"errors"
	"math"

	"github.com/poiesic/docuverse/core"
)

var (
	// ErrDimensionMismatch indicates vectors of different lengths were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("vector store is closed")
)

// Match is one search hit: the stored chunk and its similarity score.
type Match struct {
	Chunk core.Chunk
	Score float32
}

// Store persists chunk vectors. Implementations must be thread-safe.
type Store interface {
	// Upsert stores or replaces the vector and metadata under the chunk's
	// deterministic ID. Idempotent.
	Upsert(ctx context.Context, chunk core.Chunk, vec []float32) error

	// DeleteByPrefix removes every entry belonging to the document.
	// Returns the number of entries removed. Idempotent.
	DeleteByPrefix(ctx context.Context, documentID string) (int, error)

	// Search returns up to topK chunks most similar to the query vector,
	// ordered by score descending.
	Search(ctx context.Context, vec []float32, topK int) ([]*Match, error)

	// Count returns the number of entries stored under the document's prefix.
	Count(ctx context.Context, documentID string) (int, error)

	// Close releases the store's resources.
	Close() error
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
