package parser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docuverse/core"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestTextParserSingleSegment(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "  first line\nsecond line\n")

	segments, err := NewTextParser().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].PageNumber != 0 {
		t.Errorf("expected page number 0 for text, got %d", segments[0].PageNumber)
	}
	if segments[0].Content != "first line\nsecond line" {
		t.Errorf("unexpected content: %q", segments[0].Content)
	}
}

func TestTextParserMissingFileIsPermanent(t *testing.T) {
	_, err := NewTextParser().ParseFile(context.Background(), "/nonexistent/notes.txt")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !core.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestMarkdownParserStripsFormatting(t *testing.T) {
	content := `---
title: Quarterly Report
---
# Overview

This is **bold** and [a link](https://example.com) and ` + "`code`" + `.
`
	path := writeTempFile(t, "report.md", content)

	segments, err := NewMarkdownParser().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	text := segments[0].Content
	if strings.Contains(text, "title: Quarterly Report") {
		t.Errorf("frontmatter should be removed, got %q", text)
	}
	for _, marker := range []string{"#", "**", "](", "`"} {
		if strings.Contains(text, marker) {
			t.Errorf("marker %q should be stripped, got %q", marker, text)
		}
	}
	for _, word := range []string{"Overview", "bold", "a link", "code"} {
		if !strings.Contains(text, word) {
			t.Errorf("expected %q to survive, got %q", word, text)
		}
	}
}

func TestCSVParserPairsValuesWithHeaders(t *testing.T) {
	path := writeTempFile(t, "inventory.csv", "name,qty\nwidget,4\ngadget,7\n")

	segments, err := NewCSVParser().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	lines := strings.Split(segments[0].Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d: %q", len(lines), segments[0].Content)
	}
	if lines[0] != "name: widget, qty: 4" {
		t.Errorf("unexpected first row: %q", lines[0])
	}
}

func TestCSVParserHeaderOnlyYieldsNoSegments(t *testing.T) {
	path := writeTempFile(t, "empty.csv", "name,qty\n")

	segments, err := NewCSVParser().ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("expected no segments, got %d", len(segments))
	}
}

func TestRegistryUnsupportedType(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.ParseFile(context.Background(), "somefile.bin", core.FileTypeUnknown)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if !core.IsPermanent(err) {
		t.Errorf("unsupported type should be a permanent error")
	}
}

func TestRegistryEmptyDocument(t *testing.T) {
	path := writeTempFile(t, "blank.txt", "   \n  \n")

	reg := DefaultRegistry()
	_, err := reg.ParseFile(context.Background(), path, core.FileTypeTXT)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if !core.IsPermanent(err) {
		t.Errorf("empty document should be a permanent error")
	}
}

func TestDefaultRegistryCoversAcceptedTypes(t *testing.T) {
	reg := DefaultRegistry()
	for _, ft := range []core.FileType{core.FileTypePDF, core.FileTypeTXT, core.FileTypeMarkdown, core.FileTypeCSV} {
		if _, ok := reg.Get(ft); !ok {
			t.Errorf("expected parser registered for %s", ft)
		}
	}
}
