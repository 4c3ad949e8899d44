// Package parser extracts text segments from uploaded document files.
//
// Each supported format has its own Parser implementation, and the
// Registry maps the closed set of accepted file types to them. Parsing
// failures are permanent: a file that cannot be parsed today will not
// parse on retry, so the pipeline fails the task immediately instead of
// backing off.
package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docuverse/core"
)

var (
	// ErrUnsupportedType indicates no parser is registered for the file type.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyDocument indicates the file parsed successfully but yielded
	// no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Segment is one unit of extracted text. PageNumber is 1-based for paged
// formats and 0 for formats without page structure.
type Segment struct {
	Content    string
	PageNumber int
}

// Parser extracts text segments from a file of one specific format.
type Parser interface {
	// ParseFile reads the file at path and returns its text segments
	// in document order.
	ParseFile(ctx context.Context, path string) ([]Segment, error)

	// FileType returns the format this parser handles.
	FileType() core.FileType
}

// Registry maps file types to their parsers.
type Registry struct {
	parsers map[core.FileType]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[core.FileType]Parser)}
}

// DefaultRegistry returns a registry with parsers for every accepted
// file type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTextParser())
	r.Register(NewMarkdownParser())
	r.Register(NewCSVParser())
	r.Register(NewPDFParser())
	return r
}

// Register adds a parser, replacing any existing parser for the same type.
func (r *Registry) Register(p Parser) {
	r.parsers[p.FileType()] = p
}

// Get returns the parser for the given file type.
func (r *Registry) Get(ft core.FileType) (Parser, bool) {
	p, ok := r.parsers[ft]
	return p, ok
}

// ParseFile parses the file using the parser registered for its type.
// Unsupported types and parse failures return permanent errors.
func (r *Registry) ParseFile(ctx context.Context, path string, ft core.FileType) ([]Segment, error) {
	p, ok := r.parsers[ft]
	if !ok {
		return nil, core.Permanent(fmt.Errorf("%w: %s", ErrUnsupportedType, ft))
	}

	segments, err := p.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, core.Permanent(fmt.Errorf("%w: %s", ErrEmptyDocument, path))
	}
	return segments, nil
}
