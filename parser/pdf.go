package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/poiesic/docuverse/core"
)

// PDFParser extracts text from PDF files, one segment per page with a
// 1-based page number. Pages with no extractable text are skipped.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) ParseFile(ctx context.Context, path string) ([]Segment, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to open pdf: %w", err))
	}
	defer doc.Close()

	var segments []Segment
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.Text(i)
		if err != nil {
			return nil, core.Permanent(fmt.Errorf("failed to extract text from page %d: %w", i+1, err))
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Content: text, PageNumber: i + 1})
	}
	return segments, nil
}

func (p *PDFParser) FileType() core.FileType {
	return core.FileTypePDF
}
