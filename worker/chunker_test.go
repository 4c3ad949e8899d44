package worker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/parser"
)

func TestChunkerDeterministicIDs(t *testing.T) {
	c := NewChunker(50, 10)
	segments := []parser.Segment{
		{Content: "first paragraph of the document\n\nsecond paragraph right after\n\nthird one to push past the limit"},
	}

	first := c.Split("doc-1", segments)
	second := c.Split("doc-1", segments)

	if len(first) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical chunking, got %d then %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i].Id != second[i].Id {
			t.Errorf("chunk %d id mismatch: %q vs %q", i, first[i].Id, second[i].Id)
		}
		if first[i].Id != core.ChunkID("doc-1", i) {
			t.Errorf("chunk %d has unexpected id %q", i, first[i].Id)
		}
		if first[i].Content != second[i].Content {
			t.Errorf("chunk %d content mismatch", i)
		}
	}
}

func TestChunkerIndexesContinuousAcrossSegments(t *testing.T) {
	c := NewChunker(1000, 0)
	segments := []parser.Segment{
		{Content: "page one text", PageNumber: 1},
		{Content: "page two text", PageNumber: 2},
		{Content: "page three text", PageNumber: 3},
	}

	chunks := c.Split("doc-1", segments)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("expected index %d, got %d", i, chunk.ChunkIndex)
		}
		if chunk.PageNumber != i+1 {
			t.Errorf("expected page %d, got %d", i+1, chunk.PageNumber)
		}
	}
}

func TestChunkerForceSplitsOversizeParagraphs(t *testing.T) {
	c := NewChunker(100, 20)
	long := strings.Repeat("abcdefghij", 50) // 500 chars, no paragraph breaks

	chunks := c.Split("doc-1", []parser.Segment{{Content: long}})
	if len(chunks) < 2 {
		t.Fatalf("expected oversize paragraph to be split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Content) > 100 {
			t.Errorf("chunk %d exceeds size limit: %d chars", i, len(chunk.Content))
		}
	}
}

func TestChunkerOverlapKeepsRuneBoundaries(t *testing.T) {
	c := NewChunker(30, 7)
	// Two multibyte paragraphs with no spaces, so the overlap tail cannot
	// trim forward to a word boundary.
	segments := []parser.Segment{
		{Content: strings.Repeat("語", 8) + "\n\n" + strings.Repeat("本", 8)},
	}

	chunks := c.Split("doc-1", segments)
	if len(chunks) < 2 {
		t.Fatalf("expected the segment to be split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk.Content) {
			t.Errorf("chunk %d contains invalid UTF-8: %q", i, chunk.Content)
		}
	}
}

func TestChunkerEmptySegments(t *testing.T) {
	c := NewChunker(100, 20)
	chunks := c.Split("doc-1", []parser.Segment{{Content: "   "}, {Content: ""}})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks from empty segments, got %d", len(chunks))
	}
}
