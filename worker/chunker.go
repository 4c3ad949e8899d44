package worker

import (
	"strings"

	"github.com/poiesic/docuverse/core"
	"github.com/poiesic/docuverse/parser"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunker splits parsed segments into embedding-sized chunks. Paragraph
// boundaries are preferred; paragraphs larger than the chunk size are
// force-split on rune boundaries. Splitting is deterministic: the same
// segments always yield the same chunks with the same indexes, which is
// what makes re-running a pipeline overwrite instead of duplicate.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size or overlap fall back
// to the defaults; overlap is clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks the segments in order. Chunk indexes are continuous
// across segments and each chunk keeps its segment's page number.
func (c *Chunker) Split(documentID string, segments []parser.Segment) []core.Chunk {
	var chunks []core.Chunk
	index := 0

	for _, segment := range segments {
		for _, content := range c.splitText(segment.Content) {
			chunks = append(chunks, core.Chunk{
				Id:         core.ChunkID(documentID, index),
				DocumentId: documentID,
				ChunkIndex: index,
				Content:    content,
				PageNumber: segment.PageNumber,
			})
			index++
		}
	}
	return chunks
}

// splitText splits one segment's text on paragraph boundaries,
// carrying a tail overlap between consecutive chunks.
func (c *Chunker) splitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var pieces []string
	var current strings.Builder

	flush := func() string {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content != "" {
			pieces = append(pieces, content)
		}
		return content
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(paragraph) > c.size {
			previous := flush()
			if tail := tailOverlap(previous, c.overlap); tail != "" {
				current.WriteString(tail)
				current.WriteString("\n\n")
			}
		}
		current.WriteString(paragraph)
		current.WriteString("\n\n")
	}
	flush()

	// second pass for paragraphs bigger than the chunk size
	var result []string
	for _, piece := range pieces {
		if len(piece) <= c.size {
			result = append(result, piece)
			continue
		}
		result = append(result, forceSplit(piece, c.size, c.overlap)...)
	}
	return result
}

// tailOverlap returns the last size runes of text, trimmed forward to a
// word boundary when one exists. Slicing on rune boundaries keeps the
// next chunk from starting inside a multibyte character.
func tailOverlap(text string, size int) string {
	if size <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if size >= len(runes) {
		return text
	}
	tail := string(runes[len(runes)-size:])
	if idx := strings.Index(tail, " "); idx > 0 {
		return tail[idx+1:]
	}
	return tail
}

// forceSplit cuts text into fixed-size rune windows with overlap.
func forceSplit(text string, size, overlap int) []string {
	var out []string
	runes := []rune(text)
	step := size - overlap

	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}
	}
	return out
}
