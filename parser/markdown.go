package parser

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/poiesic/docuverse/core"
)

var (
	linkPattern     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	imagePattern    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	emphasisPattern = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	inlineCodeRE    = regexp.MustCompile("`([^`]*)`")
)

// MarkdownParser handles markdown files. Frontmatter is discarded and
// formatting markers are stripped so the remaining text embeds cleanly.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) ParseFile(ctx context.Context, path string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to read markdown file: %w", err))
	}

	content := removeFrontmatter(string(data))
	content = strings.TrimSpace(cleanMarkdown(content))
	if content == "" {
		return nil, nil
	}
	return []Segment{{Content: content}}, nil
}

func (p *MarkdownParser) FileType() core.FileType {
	return core.FileTypeMarkdown
}

// removeFrontmatter strips a leading YAML frontmatter block if present.
func removeFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}
	return content
}

// cleanMarkdown strips formatting markers while keeping the text.
func cleanMarkdown(content string) string {
	var out []string
	inCodeBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			out = append(out, line)
			continue
		}

		// heading markers
		for strings.HasPrefix(trimmed, "#") {
			trimmed = strings.TrimPrefix(trimmed, "#")
		}
		trimmed = strings.TrimSpace(trimmed)

		trimmed = imagePattern.ReplaceAllString(trimmed, "$1")
		trimmed = linkPattern.ReplaceAllString(trimmed, "$1")
		trimmed = emphasisPattern.ReplaceAllString(trimmed, "$2")
		trimmed = inlineCodeRE.ReplaceAllString(trimmed, "$1")

		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
