// Package retriever answers "given this query, these keywords, and this
// category, return ranked knowledge chunks plus aggregate confidence
// signals". The two booleans in Meta (KBConfident, KBLimitReached) are the
// only retrieval contract the rest of the pipeline relies on; callers must
// not read the raw similarity numbers to make decisions.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/pkg/telemetry"
	"github.com/triagehq/triage/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// keywordTierWidth buckets similarity scores for the keyword boost. A
// keyword match promotes a chunk only within its own tier; chunks in a
// higher tier always rank first.
const keywordTierWidth = 0.05

// Params is one retrieval request.
type Params struct {
	Query          string
	Keywords       []string
	Category       string
	TopK           int
	ScoreThreshold float32
	Attempt        int
	MaxAttempts    int
}

// Hit is one ranked chunk.
type Hit struct {
	ChunkID  string            `json:"chunk_id"`
	Text     string            `json:"chunk_text"`
	Score    float32           `json:"similarity_score"`
	Rank     int               `json:"rank"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta carries the aggregate retrieval signals.
type Meta struct {
	MeanSimilarity float32       `json:"mean_similarity"`
	MaxSimilarity  float32       `json:"max_similarity"`
	MinSimilarity  float32       `json:"min_similarity"`
	ChunkCount     int           `json:"chunk_count"`
	Elapsed        time.Duration `json:"elapsed"`
	KBConfident    bool          `json:"kb_confident"`
	KBLimitReached bool          `json:"kb_limit_reached"`
	Attempt        int           `json:"attempt"`
}

// Result is produced fresh per query.
type Result struct {
	Hits []Hit `json:"results"`
	Meta Meta  `json:"metadata"`
}

// Retriever orchestrates the embedder and the knowledge store.
type Retriever struct {
	store       vector.Store
	embedder    vector.Embedder
	cache       EmbeddingCache
	kbThreshold float32
	oversample  int
	logger      *slog.Logger
}

// Option customizes the retriever.
type Option func(*Retriever)

// WithEmbeddingCache replaces the default in-memory query-embedding cache.
func WithEmbeddingCache(cache EmbeddingCache) Option {
	return func(r *Retriever) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithKBConfidenceThreshold overrides the mean-similarity threshold behind
// the KBConfident signal.
func WithKBConfidenceThreshold(threshold float64) Option {
	return func(r *Retriever) {
		if threshold > 0 && threshold <= 1 {
			r.kbThreshold = float32(threshold)
		}
	}
}

// WithOversample overrides how many raw candidates are pulled per TopK slot.
func WithOversample(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.oversample = n
		}
	}
}

// New builds a retriever. The store and embedder dimensions must agree; a
// mismatch is a fatal configuration error.
func New(store vector.Store, embedder vector.Embedder, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("retriever: store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("retriever: embedder is required")
	}
	if store.Dimension() != embedder.Dimension() {
		return nil, fmt.Errorf("retriever: store dimension %d does not match embedder dimension %d: %w",
			store.Dimension(), embedder.Dimension(), vector.ErrDimensionMismatch)
	}

	r := &Retriever{
		store:       store,
		embedder:    embedder,
		cache:       NewMemoryCache(0),
		kbThreshold: float32(config.DefaultKBConfidenceThreshold),
		oversample:  config.DefaultSearchOversample,
		logger:      logging.WithComponent("retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Retrieve runs one similarity query. Idempotent for identical params
// against an unchanged store: same order, same scores.
func (r *Retriever) Retrieve(ctx context.Context, p Params) (*Result, error) {
	tracer := otel.Tracer("triage/retriever")
	ctx, span := tracer.Start(ctx, "retriever.retrieve")
	span.SetAttributes(
		attribute.String("category", p.Category),
		attribute.Int("top_k", p.TopK),
		attribute.Int("attempt", p.Attempt),
	)
	var retErr error
	defer func() { telemetry.End(span, retErr) }()

	start := time.Now()
	if p.TopK <= 0 {
		p.TopK = config.DefaultTopK
	}

	queryVec, err := r.embedQuery(ctx, p.Query)
	if err != nil {
		retErr = fmt.Errorf("embed query: %w", err)
		return nil, retErr
	}

	var filter map[string]string
	if p.Category != "" {
		filter = map[string]string{"category": p.Category}
	}

	raw, err := r.store.Search(ctx, queryVec, p.TopK*r.oversample, filter)
	if err != nil {
		retErr = fmt.Errorf("vector search: %w", err)
		return nil, retErr
	}

	hits := make([]Hit, 0, len(raw))
	for _, m := range raw {
		if m.Score < p.ScoreThreshold {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:  m.Record.ID,
			Text:     m.Record.Text,
			Score:    m.Score,
			Metadata: m.Record.Metadata,
		})
	}

	boostByKeywords(hits, p.Keywords)

	if len(hits) > p.TopK {
		hits = hits[:p.TopK]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}

	result := &Result{
		Hits: hits,
		Meta: r.buildMeta(hits, p, time.Since(start)),
	}
	r.logger.Debug("retrieval completed",
		"hits", len(hits),
		"kb_confident", result.Meta.KBConfident,
		"attempt", p.Attempt,
	)
	span.SetAttributes(
		attribute.Int("hits", len(hits)),
		attribute.Bool("kb_confident", result.Meta.KBConfident),
	)
	return result, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := NormalizeQuery(query)
	if vec, ok := r.cache.Get(ctx, key); ok {
		return vec, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, vec)
	return vec, nil
}

func (r *Retriever) buildMeta(hits []Hit, p Params, elapsed time.Duration) Meta {
	meta := Meta{
		ChunkCount:     len(hits),
		Elapsed:        elapsed,
		Attempt:        p.Attempt,
		KBLimitReached: p.MaxAttempts > 0 && p.Attempt >= p.MaxAttempts,
	}
	if len(hits) == 0 {
		// Empty result is never confident.
		return meta
	}

	var sum float32
	meta.MinSimilarity = hits[0].Score
	for _, h := range hits {
		sum += h.Score
		if h.Score > meta.MaxSimilarity {
			meta.MaxSimilarity = h.Score
		}
		if h.Score < meta.MinSimilarity {
			meta.MinSimilarity = h.Score
		}
	}
	meta.MeanSimilarity = sum / float32(len(hits))
	meta.KBConfident = meta.MeanSimilarity >= r.kbThreshold
	return meta
}

// boostByKeywords promotes chunks containing literal keyword matches within
// their similarity tier. A chunk never moves above one in a strictly higher
// tier.
func boostByKeywords(hits []Hit, keywords []string) {
	if len(hits) < 2 || len(keywords) == 0 {
		return
	}

	tier := func(score float32) int {
		return int(score / keywordTierWidth)
	}
	matches := make([]int, len(hits))
	for i, h := range hits {
		matches[i] = keywordMatches(h.Text, keywords)
	}
	index := make(map[string]int, len(hits))
	for i, h := range hits {
		index[h.ChunkID] = i
	}

	sort.SliceStable(hits, func(i, j int) bool {
		ti, tj := tier(hits[i].Score), tier(hits[j].Score)
		if ti != tj {
			return ti > tj
		}
		mi, mj := matches[index[hits[i].ChunkID]], matches[index[hits[j].ChunkID]]
		if mi != mj {
			return mi > mj
		}
		return hits[i].Score > hits[j].Score
	})
}

// keywordMatches counts how many of the keywords appear in text,
// case-insensitively. Each keyword counts at most once.
func keywordMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
