package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/triagehq/triage/contrib/vector/inmemory"
	"github.com/triagehq/triage/document"
	"github.com/triagehq/triage/vector"
)

type countingEmbedder struct {
	dim        int
	batchCalls int
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.dim), nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, e.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int { return e.dim }

func TestNewRejectsDimensionMismatch(t *testing.T) {
	store := inmemory.New(8)
	if _, err := New(store, &countingEmbedder{dim: 4}); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestIndexDocuments(t *testing.T) {
	store := inmemory.New(4)
	emb := &countingEmbedder{dim: 4}
	ix, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	doc := document.Document{
		Title:    "Password help",
		Content:  "# Reset\nRequest a new reset link from the login page.\n\n# Lifetime\nLinks expire after one hour.",
		Metadata: map[string]any{"category": "authentication"},
	}
	n, err := ix.IndexDocuments(context.Background(), doc)
	if err != nil {
		t.Fatalf("IndexDocuments failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected chunks to be stored")
	}

	count, err := store.Count(context.Background())
	if err != nil || count != n {
		t.Fatalf("store count %d (err %v), want %d", count, err, n)
	}
	if emb.batchCalls != 1 {
		t.Errorf("expected one batch embed call per document, got %d", emb.batchCalls)
	}

	matches, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 10, map[string]string{"category": "authentication"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != n {
		t.Errorf("category metadata should be carried onto every chunk, matched %d of %d", len(matches), n)
	}
	for _, m := range matches {
		if m.Record.Metadata["document_id"] == "" {
			t.Error("chunk records must carry their source document id")
		}
	}
}

func TestIndexDocumentsSkipsEmpty(t *testing.T) {
	store := inmemory.New(4)
	ix, err := New(store, &countingEmbedder{dim: 4})
	if err != nil {
		t.Fatal(err)
	}

	n, err := ix.IndexDocuments(context.Background(), document.Document{Title: "Empty", Content: "   "})
	if err != nil {
		t.Fatalf("IndexDocuments failed: %v", err)
	}
	if n != 0 {
		t.Errorf("empty document must store nothing, got %d", n)
	}
}

func TestIndexHTML(t *testing.T) {
	store := inmemory.New(4)
	ix, err := New(store, &countingEmbedder{dim: 4})
	if err != nil {
		t.Fatal(err)
	}

	html := `<html><body><h1>Billing FAQ</h1><p>Duplicate charges are reversed automatically.</p></body></html>`
	n, err := ix.IndexHTML(context.Background(), "faq-1", "Billing FAQ", html, map[string]any{"category": "billing"})
	if err != nil {
		t.Fatalf("IndexHTML failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected chunks from the HTML page")
	}
}
