package retriever

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/triagehq/triage/contrib/vector/inmemory"
	"github.com/triagehq/triage/vector"
)

// staticEmbedder returns a fixed vector per known text and counts calls.
type staticEmbedder struct {
	vectors map[string][]float32
	deflt   []float32
	calls   int
}

func (e *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.deflt, nil
}

func (e *staticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *staticEmbedder) Dimension() int { return 3 }

func seedStore(t *testing.T) *inmemory.Store {
	t.Helper()
	ctx := context.Background()
	store := inmemory.New(3)
	records := []*vector.Record{
		{ID: "c1", Text: "reset your password from the login page", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"category": "authentication"}},
		{ID: "c2", Text: "invoice charges explained", Vector: []float32{0, 1, 0}, Metadata: map[string]string{"category": "billing"}},
		{ID: "c3", Text: "vpn connection drops on wifi", Vector: []float32{0, 0, 1}, Metadata: map[string]string{"category": "network"}},
		{ID: "c4", Text: "password reset link lifetime is one hour", Vector: []float32{0.9, 0.1, 0}, Metadata: map[string]string{"category": "authentication"}},
	}
	for _, rec := range records {
		if err := store.Add(ctx, rec); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	return store
}

func TestNewRejectsDimensionMismatch(t *testing.T) {
	store := inmemory.New(8)
	emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
	if _, err := New(store, emb); !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRetrieveIdempotence(t *testing.T) {
	store := seedStore(t)
	emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
	r, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	p := Params{Query: "cannot log in", TopK: 3, ScoreThreshold: 0.1, Attempt: 1, MaxAttempts: 2}
	first, err := r.Retrieve(context.Background(), p)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	second, err := r.Retrieve(context.Background(), p)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !reflect.DeepEqual(first.Hits, second.Hits) {
		t.Errorf("hits differ between identical calls:\n%v\n%v", first.Hits, second.Hits)
	}
	if first.Meta.KBConfident != second.Meta.KBConfident {
		t.Error("kb_confident differs between identical calls")
	}
}

func TestRetrieveThresholdLaw(t *testing.T) {
	store := seedStore(t)
	emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
	r, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Retrieve(context.Background(), Params{Query: "login", TopK: 10, ScoreThreshold: 0.5, Attempt: 1, MaxAttempts: 2})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, h := range res.Hits {
		if h.Score < 0.5 {
			t.Errorf("hit %s below threshold: %f", h.ChunkID, h.Score)
		}
	}
}

func TestKBConfidentMonotonicity(t *testing.T) {
	t.Run("empty result is never confident", func(t *testing.T) {
		store := inmemory.New(3)
		emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
		r, err := New(store, emb)
		if err != nil {
			t.Fatal(err)
		}
		res, err := r.Retrieve(context.Background(), Params{Query: "anything", TopK: 4, Attempt: 1, MaxAttempts: 2})
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		if len(res.Hits) != 0 {
			t.Fatalf("expected empty result, got %d", len(res.Hits))
		}
		if res.Meta.KBConfident {
			t.Error("empty result must not be kb_confident")
		}
	})

	t.Run("confident iff mean at or above threshold", func(t *testing.T) {
		store := seedStore(t)
		emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
		r, err := New(store, emb, WithKBConfidenceThreshold(0.70))
		if err != nil {
			t.Fatal(err)
		}
		res, err := r.Retrieve(context.Background(), Params{Query: "password reset", TopK: 2, ScoreThreshold: 0.5, Attempt: 1, MaxAttempts: 2})
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		want := res.Meta.MeanSimilarity >= 0.70
		if res.Meta.KBConfident != want {
			t.Errorf("kb_confident=%v but mean=%f", res.Meta.KBConfident, res.Meta.MeanSimilarity)
		}
	})
}

func TestKBLimitReached(t *testing.T) {
	store := seedStore(t)
	emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
	r, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	res, _ := r.Retrieve(context.Background(), Params{Query: "q", TopK: 2, Attempt: 1, MaxAttempts: 2})
	if res.Meta.KBLimitReached {
		t.Error("attempt 1 of 2 should not report limit reached")
	}
	res, _ = r.Retrieve(context.Background(), Params{Query: "q", TopK: 2, Attempt: 2, MaxAttempts: 2})
	if !res.Meta.KBLimitReached {
		t.Error("attempt 2 of 2 should report limit reached")
	}
}

func TestCategoryFilter(t *testing.T) {
	store := seedStore(t)
	emb := &staticEmbedder{deflt: []float32{0.5, 0.5, 0}}
	r, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Retrieve(context.Background(), Params{Query: "charges", Category: "billing", TopK: 5, Attempt: 1, MaxAttempts: 2})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, h := range res.Hits {
		if h.Metadata["category"] != "billing" {
			t.Errorf("hit %s escaped the category filter", h.ChunkID)
		}
	}
}

func TestQueryEmbeddingCached(t *testing.T) {
	store := seedStore(t)
	emb := &staticEmbedder{deflt: []float32{1, 0, 0}}
	r, err := New(store, emb)
	if err != nil {
		t.Fatal(err)
	}

	p := Params{Query: "Cannot  Log In", TopK: 2, Attempt: 1, MaxAttempts: 2}
	r.Retrieve(context.Background(), p)
	// Different surface form, same normalized key.
	p.Query = "cannot log in"
	r.Retrieve(context.Background(), p)

	if emb.calls != 1 {
		t.Errorf("expected 1 embed call via cache, got %d", emb.calls)
	}
}

func TestKeywordBoostStaysWithinTier(t *testing.T) {
	hits := []Hit{
		{ChunkID: "high", Text: "unrelated text", Score: 0.92},
		{ChunkID: "mid-nokw", Text: "other text", Score: 0.83},
		{ChunkID: "mid-kw", Text: "mentions the vpn keyword", Score: 0.81},
		{ChunkID: "low-kw", Text: "vpn vpn vpn", Score: 0.40},
	}
	boostByKeywords(hits, []string{"vpn"})

	if hits[0].ChunkID != "high" {
		t.Errorf("keyword boost must not displace a strictly higher tier, got %s first", hits[0].ChunkID)
	}
	// 0.83 and 0.81 share the 0.80 tier: the keyword match wins.
	if hits[1].ChunkID != "mid-kw" {
		t.Errorf("expected mid-kw promoted within its tier, got %s", hits[1].ChunkID)
	}
	if hits[3].ChunkID != "low-kw" {
		t.Errorf("low tier must stay last regardless of matches, got %s", hits[3].ChunkID)
	}
}

func TestNormalizeQuery(t *testing.T) {
	if NormalizeQuery("  Cannot   LOG in ") != "cannot log in" {
		t.Errorf("unexpected normalization %q", NormalizeQuery("  Cannot   LOG in "))
	}
}
