package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/triagehq/triage/document"
)

func newTestTokenChunker(t *testing.T, budget, overlap int) *TokenChunker {
	t.Helper()
	ch, err := NewTokenChunker("cl100k_base", budget, overlap)
	if err != nil {
		t.Fatalf("NewTokenChunker failed: %v", err)
	}
	return ch
}

func TestTokenChunkerRespectsBudget(t *testing.T) {
	ch := newTestTokenChunker(t, 10, 3)
	doc := document.Document{
		ID:       "tok-1",
		Title:    "Router diagnostics",
		Content:  strings.Repeat("Restart the router and check the indicator lights. ", 8),
		Metadata: map[string]any{"category": "network"},
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if got := ch.CountTokens(c.Content); got > 10 {
			t.Errorf("chunk %d has %d tokens, budget is 10", i, got)
		}
		if c.DocumentID != "tok-1" {
			t.Errorf("chunk %d not linked to document: %q", i, c.DocumentID)
		}
		if c.SectionTitle != "Router diagnostics" {
			t.Errorf("chunk %d lost the document title: %q", i, c.SectionTitle)
		}
		if c.Metadata["category"] != "network" {
			t.Errorf("chunk %d lost document metadata", i)
		}
		if c.Ordinal != i+1 {
			t.Errorf("chunk %d has ordinal %d", i, c.Ordinal)
		}
	}
}

func TestTokenChunkerOverlapsWindows(t *testing.T) {
	ch := newTestTokenChunker(t, 8, 4)
	doc := document.Document{
		ID:      "tok-2",
		Content: strings.Repeat("password reset link expired ", 10),
	}

	chunks, err := ch.Chunk(context.Background(), doc)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected overlapping windows, got %d chunks", len(chunks))
	}
	if chunks[0].Content == chunks[1].Content {
		t.Fatal("expected overlapping but distinct chunks")
	}
}

func TestTokenChunkerEmptyDocument(t *testing.T) {
	ch := newTestTokenChunker(t, 16, 2)
	chunks, err := ch.Chunk(context.Background(), document.Document{ID: "tok-3", Content: ""})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if chunks != nil {
		t.Errorf("empty document must yield no chunks, got %d", len(chunks))
	}
}

func TestTokenChunkerRejectsUnknownEncoding(t *testing.T) {
	if _, err := NewTokenChunker("no-such-encoding", 16, 2); err == nil {
		t.Fatal("expected error for unresolvable encoding name")
	}
}

func TestCountTokens(t *testing.T) {
	ch := newTestTokenChunker(t, 16, 2)
	if got := ch.CountTokens(""); got != 0 {
		t.Errorf("empty text should count 0 tokens, got %d", got)
	}
	short := ch.CountTokens("reset link")
	long := ch.CountTokens("reset link expired before I could open it")
	if short <= 0 || long <= short {
		t.Errorf("token counts not monotone: short=%d long=%d", short, long)
	}
}
