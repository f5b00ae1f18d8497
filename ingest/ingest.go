// Package ingest populates the knowledge store from raw documents. Ingestion
// is a batch process that runs outside the request path; it must not run
// concurrently with retrieval against the same collection.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/triagehq/triage/chunking"
	"github.com/triagehq/triage/document"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/preprocess"
	"github.com/triagehq/triage/vector"
)

// Indexer runs the clean -> chunk -> embed -> store pipeline.
type Indexer struct {
	store    vector.Store
	embedder vector.Embedder
	chunker  chunking.Chunker
	cleanup  bool
	logger   *slog.Logger
}

// Option customizes the indexer.
type Option func(*Indexer)

// WithChunker overrides the default section chunker.
func WithChunker(c chunking.Chunker) Option {
	return func(ix *Indexer) {
		if c != nil {
			ix.chunker = c
		}
	}
}

// WithCleanup toggles text normalisation before chunking.
func WithCleanup(enabled bool) Option {
	return func(ix *Indexer) {
		ix.cleanup = enabled
	}
}

// New builds an indexer. The embedder and store dimensions must agree; a
// mismatch is a configuration error surfaced immediately.
func New(store vector.Store, embedder vector.Embedder, opts ...Option) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder is required")
	}
	if store.Dimension() != embedder.Dimension() {
		return nil, fmt.Errorf("ingest: store dimension %d does not match embedder dimension %d: %w",
			store.Dimension(), embedder.Dimension(), vector.ErrDimensionMismatch)
	}

	ix := &Indexer{
		store:    store,
		embedder: embedder,
		chunker:  chunking.NewSectionChunker(),
		cleanup:  true,
		logger:   logging.WithComponent("ingest"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// IndexDocuments ingests documents: clean, chunk, embed in batch, store.
// Re-ingestion targets a fresh collection which is swapped in whole; chunks
// are never updated in place.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs ...document.Document) (int, error) {
	total := 0
	for _, doc := range docs {
		document.EnsureDocumentID(&doc)
		if ix.cleanup {
			doc.Content = preprocess.CleanText(doc.Content)
		}
		if doc.Content == "" {
			ix.logger.Warn("skipping empty document", "doc_id", doc.ID)
			continue
		}

		chunks, err := ix.chunker.Chunk(ctx, doc)
		if err != nil {
			return total, fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return total, fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		if len(vectors) != len(chunks) {
			return total, fmt.Errorf("embed document %s: expected %d vectors, got %d", doc.ID, len(chunks), len(vectors))
		}

		for i, chunk := range chunks {
			rec := &vector.Record{
				ID:       chunk.ID,
				Vector:   vectors[i],
				Text:     chunk.Content,
				Metadata: recordMetadata(doc, chunk),
			}
			if err := ix.store.Add(ctx, rec); err != nil {
				return total, fmt.Errorf("store chunk %s: %w", chunk.ID, err)
			}
			total++
		}
		ix.logger.Info("document indexed", "doc_id", doc.ID, "chunks", len(chunks))
	}
	return total, nil
}

// IndexHTML converts an HTML page to text and indexes it.
func (ix *Indexer) IndexHTML(ctx context.Context, id, title, html string, metadata map[string]any) (int, error) {
	text, err := preprocess.HTMLToText(html)
	if err != nil {
		return 0, fmt.Errorf("convert html %s: %w", id, err)
	}
	return ix.IndexDocuments(ctx, document.Document{
		ID:       id,
		Title:    title,
		Content:  text,
		Metadata: metadata,
	})
}

func recordMetadata(doc document.Document, chunk document.Chunk) map[string]string {
	md := make(map[string]string, 4)
	md["document_id"] = doc.ID
	if chunk.SectionTitle != "" {
		md["section"] = chunk.SectionTitle
	}
	for k, v := range doc.Metadata {
		if s, ok := v.(string); ok {
			md[k] = s
		}
	}
	for k, v := range chunk.Metadata {
		if s, ok := v.(string); ok {
			md[k] = s
		}
	}
	return md
}
