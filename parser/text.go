package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/docuverse/core"
)

// TextParser handles plain text files. The whole file becomes a single
// segment with no page structure.
type TextParser struct{}

// NewTextParser creates a plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) ParseFile(ctx context.Context, path string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to read text file: %w", err))
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}
	return []Segment{{Content: content}}, nil
}

func (p *TextParser) FileType() core.FileType {
	return core.FileTypeTXT
}
