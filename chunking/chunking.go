package chunking

import (
	"context"
	"strings"

	"github.com/triagehq/triage/document"
)

// Chunker splits documents into chunks that can be embedded and indexed.
type Chunker interface {
	Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error)
}

type Options struct {
	ChunkSize   int
	Overlap     int
	IncludeMeta bool
}

// Option customizes a chunker.
type Option func(*Options)

// WithChunkSize overrides the default chunk size (characters).
func WithChunkSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ChunkSize = size
		}
	}
}

// WithOverlap configures overlap (characters) between consecutive chunks.
func WithOverlap(overlap int) Option {
	return func(o *Options) {
		if overlap >= 0 {
			o.Overlap = overlap
		}
	}
}

// WithMetadataCopy toggles whether document metadata should be copied to chunks.
func WithMetadataCopy(enabled bool) Option {
	return func(o *Options) {
		o.IncludeMeta = enabled
	}
}

// SectionChunker splits a document along markdown-style headings, then
// windows long sections with overlap. Each window keeps its section title,
// and windows cut from the same section are linked through a parent chunk so
// the section can be reassembled.
type SectionChunker struct {
	size    int
	overlap int
	addMeta bool
}

// NewSectionChunker constructs a chunker with sane defaults for most knowledge bases.
func NewSectionChunker(opts ...Option) *SectionChunker {
	cfg := &Options{
		ChunkSize:   800,
		Overlap:     120,
		IncludeMeta: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 4
	}
	return &SectionChunker{
		size:    cfg.ChunkSize,
		overlap: cfg.Overlap,
		addMeta: cfg.IncludeMeta,
	}
}

type section struct {
	title string
	body  string
}

// Chunk splits the document into bounded, structure-aware pieces.
func (c *SectionChunker) Chunk(ctx context.Context, doc document.Document) ([]document.Chunk, error) {
	document.EnsureDocumentID(&doc)

	sections := splitSections(doc.Content)
	chunks := make([]document.Chunk, 0, len(sections))
	ordinal := 0

	for _, sec := range sections {
		body := strings.TrimSpace(sec.body)
		if body == "" {
			continue
		}
		if len(body) <= c.size {
			ordinal++
			chunks = append(chunks, c.newChunk(doc, ordinal, sec.title, body))
			continue
		}

		// Long section: emit a parent covering the whole section plus
		// overlapping windows linked back to it.
		ordinal++
		parent := c.newChunk(doc, ordinal, sec.title, body)
		windows := windowText(body, c.size, c.overlap)
		for _, w := range windows {
			ordinal++
			child := c.newChunk(doc, ordinal, sec.title, w)
			child.ParentID = parent.ID
			parent.ChildIDs = append(parent.ChildIDs, child.ID)
			chunks = append(chunks, child)
		}
		chunks = append(chunks, parent)
	}

	if len(chunks) == 0 {
		ordinal++
		chunks = append(chunks, c.newChunk(doc, ordinal, doc.Title, doc.Content))
	}

	return chunks, nil
}

func (c *SectionChunker) newChunk(doc document.Document, ordinal int, title, content string) document.Chunk {
	chunk := document.Chunk{
		ID:           document.NextChunkID(doc.ID),
		DocumentID:   doc.ID,
		Content:      strings.TrimSpace(content),
		Ordinal:      ordinal,
		SectionTitle: title,
	}
	if c.addMeta && doc.Metadata != nil {
		chunk.Metadata = make(map[string]any, len(doc.Metadata))
		for k, v := range doc.Metadata {
			chunk.Metadata[k] = v
		}
	}
	return chunk
}

// splitSections divides content at markdown headings. Text before the first
// heading becomes an untitled section.
func splitSections(content string) []section {
	lines := strings.Split(content, "\n")
	var sections []section
	current := section{}
	var body strings.Builder

	flush := func() {
		current.body = body.String()
		if strings.TrimSpace(current.body) != "" || current.title != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			current = section{title: strings.TrimSpace(strings.TrimLeft(trimmed, "# "))}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, section{body: content})
	}
	return sections
}

// windowText cuts text into overlapping windows of at most size characters.
func windowText(text string, size, overlap int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}
