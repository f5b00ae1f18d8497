package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/triagehq/triage/document"
)

func TestSectionChunkerKeepsSectionTitles(t *testing.T) {
	chunker := NewSectionChunker(WithChunkSize(200), WithOverlap(40))
	doc := document.Document{
		ID:      "kb1",
		Title:   "Password help",
		Content: "# Reset links\nReset links expire after one hour.\n\n# Lockouts\nAccounts lock after five failed attempts.",
	}

	chunks, err := chunker.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "Reset links" {
		t.Errorf("expected section title %q, got %q", "Reset links", chunks[0].SectionTitle)
	}
	if chunks[1].SectionTitle != "Lockouts" {
		t.Errorf("expected section title %q, got %q", "Lockouts", chunks[1].SectionTitle)
	}
}

func TestSectionChunkerWindowsLongSections(t *testing.T) {
	chunker := NewSectionChunker(WithChunkSize(100), WithOverlap(20))
	doc := document.Document{
		ID:      "kb2",
		Content: "# Long\n" + strings.Repeat("network diagnostics step. ", 30),
	}

	chunks, err := chunker.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected parent plus windows, got %d chunks", len(chunks))
	}

	var parent *document.Chunk
	for i := range chunks {
		if len(chunks[i].ChildIDs) > 0 {
			parent = &chunks[i]
		}
	}
	if parent == nil {
		t.Fatal("expected a parent chunk with child links")
	}
	for _, c := range chunks {
		if c.ID == parent.ID {
			continue
		}
		if c.ParentID != parent.ID {
			t.Errorf("chunk %s not linked to parent", c.ID)
		}
		if len(c.Content) > 100 {
			t.Errorf("window exceeds chunk size: %d", len(c.Content))
		}
	}
}

func TestSectionChunkerEmptyDocumentStillYieldsChunk(t *testing.T) {
	chunker := NewSectionChunker()
	doc := document.Document{ID: "kb3", Content: "short note"}

	chunks, err := chunker.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short note" {
		t.Errorf("unexpected content %q", chunks[0].Content)
	}
}

func TestWindowTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 250)
	windows := windowText(text, 100, 20)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	if len(windows[0]) != 100 {
		t.Errorf("expected window of 100, got %d", len(windows[0]))
	}
}
