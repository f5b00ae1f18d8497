package pipeline

import (
	"context"
	"fmt"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/retriever"
	"github.com/triagehq/triage/ticket"
)

// Solution is a candidate answer plus the retrieval signals the evaluator
// consumes. The booleans are passed through from retrieval untouched.
type Solution struct {
	Text           string          `json:"text"`
	ChunkID        string          `json:"chunk_id,omitempty"`
	Hits           []retriever.Hit `json:"hits,omitempty"`
	MeanSimilarity float64         `json:"mean_similarity"`
	KBConfident    bool            `json:"kb_confident"`
	KBLimitReached bool            `json:"kb_limit_reached"`
}

// SolutionFinder wraps the retriever behind a stable call signature: it runs
// the plan's query and picks the top chunk as the candidate answer. No
// decision logic lives here.
type SolutionFinder struct {
	retriever *retriever.Retriever
	cfg       *config.Config
}

// NewSolutionFinder builds a solution finder.
func NewSolutionFinder(r *retriever.Retriever, cfg *config.Config) *SolutionFinder {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &SolutionFinder{retriever: r, cfg: cfg}
}

// Find runs one retrieval for the ticket's current attempt.
func (f *SolutionFinder) Find(ctx context.Context, t *ticket.Ticket, plan *ticket.QueryPlan) (*Solution, error) {
	if plan == nil {
		return nil, fmt.Errorf("solution finder requires a query plan")
	}

	result, err := f.retriever.Retrieve(ctx, retriever.Params{
		Query:          plan.Query,
		Keywords:       plan.Keywords,
		Category:       string(plan.Classification.Category),
		TopK:           f.cfg.Retrieval.TopKCount,
		ScoreThreshold: float32(f.cfg.Retrieval.ScoreThreshold),
		Attempt:        t.Attempt,
		MaxAttempts:    f.cfg.Limits.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve solution: %w", err)
	}

	sol := &Solution{
		Hits:           result.Hits,
		MeanSimilarity: float64(result.Meta.MeanSimilarity),
		KBConfident:    result.Meta.KBConfident,
		KBLimitReached: result.Meta.KBLimitReached,
	}
	if len(result.Hits) > 0 {
		sol.Text = result.Hits[0].Text
		sol.ChunkID = result.Hits[0].ChunkID
	}
	return sol, nil
}
