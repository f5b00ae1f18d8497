package chunking

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/triagehq/triage/document"
)

// TokenChunker windows documents by token count instead of characters, using
// the tiktoken encoding for the configured model. Useful when the embedding
// backend enforces a token budget per input.
type TokenChunker struct {
	enc      *tiktoken.Tiktoken
	budget   int
	overlap  int
	copyMeta bool
}

// NewTokenChunker builds a token-budget chunker. The encoding is resolved by
// model name first, then by encoding name.
func NewTokenChunker(model string, budget, overlap int) (*TokenChunker, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, fmt.Errorf("resolve tiktoken encoding %q: %w", model, err)
		}
	}
	if budget <= 0 {
		budget = 256
	}
	if overlap < 0 || overlap >= budget {
		overlap = budget / 8
	}
	return &TokenChunker{
		enc:      enc,
		budget:   budget,
		overlap:  overlap,
		copyMeta: true,
	}, nil
}

// Chunk splits the document into windows of at most budget tokens.
func (c *TokenChunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	ids := c.enc.Encode(doc.Content, nil, nil)
	if len(ids) == 0 {
		return nil, nil
	}

	step := c.budget - c.overlap
	var chunks []document.Chunk
	ordinal := 0
	for start := 0; start < len(ids); start += step {
		end := start + c.budget
		if end > len(ids) {
			end = len(ids)
		}
		ordinal++
		chunk := document.Chunk{
			ID:           document.NextChunkID(doc.ID),
			DocumentID:   doc.ID,
			Content:      c.enc.Decode(ids[start:end]),
			Ordinal:      ordinal,
			SectionTitle: doc.Title,
		}
		if c.copyMeta && doc.Metadata != nil {
			chunk.Metadata = make(map[string]any, len(doc.Metadata))
			for k, v := range doc.Metadata {
				chunk.Metadata[k] = v
			}
		}
		chunks = append(chunks, chunk)
		if end == len(ids) {
			break
		}
	}
	return chunks, nil
}

// CountTokens returns the token count of text under this chunker's encoding.
func (c *TokenChunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
