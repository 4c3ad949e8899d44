package core

import "testing"

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc-1", 0)
	b := ChunkID("doc-1", 0)
	if a != b {
		t.Fatalf("Expected identical chunk IDs, got %q and %q", a, b)
	}
	if a != "doc-1:0" {
		t.Fatalf("Expected 'doc-1:0', got %q", a)
	}
	if ChunkID("doc-1", 12) != "doc-1:12" {
		t.Fatalf("Unexpected chunk ID for index 12: %q", ChunkID("doc-1", 12))
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []TaskStatus{StatusCompleted, StatusFailed, StatusDeleteCompleted, StatusDeleteFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Expected %q to be terminal", s)
		}
	}

	active := []TaskStatus{StatusQueued, StatusParsing, StatusChunking, StatusEmbedding, StatusStoring, StatusDeleteQueued, StatusDeleting}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("Expected %q to be non-terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{StatusQueued, StatusParsing, true},
		{StatusParsing, StatusChunking, true},
		{StatusChunking, StatusEmbedding, true},
		{StatusEmbedding, StatusStoring, true},
		{StatusStoring, StatusCompleted, true},
		{StatusQueued, StatusFailed, true},
		{StatusStoring, StatusFailed, true},
		// Regressions are rejected
		{StatusEmbedding, StatusParsing, false},
		{StatusCompleted, StatusParsing, false},
		// Terminal states are frozen
		{StatusFailed, StatusParsing, false},
		{StatusCompleted, StatusCompleted, false},
		// Tracks never cross
		{StatusParsing, StatusDeleting, false},
		{StatusDeleteQueued, StatusCompleted, false},
		// Delete track
		{StatusDeleteQueued, StatusDeleting, true},
		{StatusDeleting, StatusDeleteCompleted, true},
		{StatusDeleting, StatusDeleteFailed, true},
		{StatusDeleteCompleted, StatusDeleting, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestFileTypeFromName(t *testing.T) {
	cases := map[string]FileType{
		"report.pdf":   FileTypePDF,
		"notes.TXT":    FileTypeTXT,
		"README.md":    FileTypeMarkdown,
		"data.csv":     FileTypeCSV,
		"archive.zip":  FileTypeUnknown,
		"no-extension": FileTypeUnknown,
	}
	for name, want := range cases {
		if got := FileTypeFromName(name); got != want {
			t.Errorf("FileTypeFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestEventTypeForStatus(t *testing.T) {
	if EventTypeForStatus(StatusParsing) != EventProgress {
		t.Error("Expected parsing to map to a progress event")
	}
	if EventTypeForStatus(StatusCompleted) != EventCompleted {
		t.Error("Expected completed to map to a completed event")
	}
	if EventTypeForStatus(StatusDeleteCompleted) != EventDeleted {
		t.Error("Expected delete_completed to map to a deleted event")
	}
}

func TestHashContentDeterministic(t *testing.T) {
	h1 := HashContent([]byte("same bytes"))
	h2 := HashContent([]byte("same bytes"))
	if h1 != h2 {
		t.Fatal("Expected identical hashes for identical content")
	}
	if h1 == HashContent([]byte("other bytes")) {
		t.Fatal("Expected different hashes for different content")
	}
}
