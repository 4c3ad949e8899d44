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


// Package search answers semantic queries over processed documents.
//
// A query is embedded with the same model used at ingestion time, matched
// against the vector store, and the hits are enriched with their document
// records so callers can show filenames alongside chunk text.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docuverse/ai"
	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/storage"
	"github.com/poiesic/docuverse/vector"
)

const defaultMinScore = 0.3

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmptyQuery is returned for a blank query string.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Result is one search hit with its source document attached.
type Result struct {
	Chunk    core.Chunk `json:"chunk"`
	Score    float32    `json:"score"`
	Filename string     `json:"filename,omitempty"`
}

// Searcher runs semantic queries against the vector store.
type Searcher struct {
	embedder  ai.Embedder
	vectors   vector.Store
	documents storage.DocumentRepository
	minScore  float32
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore sets the similarity threshold below which hits are
// dropped. Default is 0.3.
func WithMinScore(min float32) Option {
	return func(s *Searcher) error {
		s.minScore = min
		return nil
	}
}

// New creates a Searcher. The document repository is optional; without
// it results carry no filenames.
func New(embedder ai.Embedder, vectors vector.Store, documents storage.DocumentRepository, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}

	s := &Searcher{
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		minScore:  defaultMinScore,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Query returns up to topK chunks relevant to the query, best first.
func (s *Searcher) Query(ctx context.Context, query string, topK int) ([]*Result, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > 100 {
		topK = 100
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	matches, err := s.vectors.Search(ctx, embedding, topK)
	if err != nil {
		s.logger.Error("error querying vector store", "err", err)
		return nil, err
	}

	filenames := make(map[string]string)
	results := make([]*Result, 0, len(matches))
	for _, match := range matches {
		if match.Score < s.minScore {
			continue
		}
		results = append(results, &Result{
			Chunk:    match.Chunk,
			Score:    match.Score,
			Filename: s.filenameFor(ctx, match.Chunk.DocumentId, filenames),
		})
	}
	return results, nil
}

// filenameFor resolves a document's filename, caching lookups across one
// query. Missing documents (deleted mid-query) yield an empty name.
func (s *Searcher) filenameFor(ctx context.Context, documentID string, cache map[string]string) string {
	if s.documents == nil || documentID == "" {
		return ""
	}
	if name, ok := cache[documentID]; ok {
		return name
	}

	name := ""
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err == nil {
		name = doc.Filename
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("error resolving document for search hit", "document_id", documentID, "err", err)
	}
	cache[documentID] = name
	return name
}
