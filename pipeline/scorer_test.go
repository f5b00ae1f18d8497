package pipeline

import (
	"context"
	"testing"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/reason"
	"github.com/triagehq/triage/ticket"
)

func TestScorerHeuristicDeterminism(t *testing.T) {
	s := NewScorer(nil, config.DefaultConfig())
	tk := ticket.New("Urgent: production down again", "Our production system is down again and customers are affected.", "cust-1")

	first := s.Score(context.Background(), tk)
	for i := 0; i < 5; i++ {
		next := s.Score(context.Background(), tk)
		if next.Score != first.Score || next.Priority != first.Priority {
			t.Fatalf("score changed between identical calls: %d/%s vs %d/%s",
				first.Score, first.Priority, next.Score, next.Priority)
		}
	}
}

func TestScorerBoundary(t *testing.T) {
	s := NewScorer(nil, config.DefaultConfig())

	t.Run("all marker classes clamp at 100 and tier high", func(t *testing.T) {
		tk := ticket.New("Urgent outage again", "Critical: production is down again, all customers affected. This keeps happening.", "cust-2")
		result := s.Score(context.Background(), tk)
		if result.Score != 100 {
			t.Errorf("expected clamped score 100, got %d", result.Score)
		}
		if result.Priority != ticket.PriorityHigh {
			t.Errorf("expected high priority, got %s", result.Priority)
		}
	})

	t.Run("no markers yields the base score", func(t *testing.T) {
		tk := ticket.New("Question about dark mode", "Is there a way to enable dark mode in the settings panel?", "cust-3")
		result := s.Score(context.Background(), tk)
		if result.Score != 10 {
			t.Errorf("expected base score 10, got %d", result.Score)
		}
		if result.Priority != ticket.PriorityLow {
			t.Errorf("expected low priority, got %s", result.Priority)
		}
	})
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		score int
		want  ticket.Priority
	}{
		{0, ticket.PriorityLow},
		{34, ticket.PriorityLow},
		{35, ticket.PriorityMedium},
		{69, ticket.PriorityMedium},
		{70, ticket.PriorityHigh},
		{100, ticket.PriorityHigh},
	}
	for _, c := range cases {
		if got := TierFor(c.score); got != c.want {
			t.Errorf("TierFor(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestScorerModelPathIsClamped(t *testing.T) {
	client := &stubClient{replies: []string{`{"score": 180, "reasoning": "everything is on fire"}`}}
	s := NewScorer(client, config.DefaultConfig())
	tk := ticket.New("Fire", "A description long enough to be a real ticket about something burning.", "cust-4")

	result := s.Score(context.Background(), tk)
	if result.Score != 100 {
		t.Errorf("model score must be clamped to 100, got %d", result.Score)
	}
	if result.Priority != ticket.PriorityHigh {
		t.Errorf("expected high priority, got %s", result.Priority)
	}
	if result.Source != reason.SourceModel {
		t.Errorf("expected model source, got %s", result.Source)
	}
}

func TestScorerFallsBackOnServiceError(t *testing.T) {
	s := NewScorer(failingClient{}, config.DefaultConfig())
	tk := ticket.New("Urgent issue", "The export is urgent for our quarterly report.", "cust-5")

	result := s.Score(context.Background(), tk)
	if result.Source != reason.SourceHeuristic {
		t.Fatalf("expected heuristic fallback, got %s", result.Source)
	}
	if result.Score != 50 {
		t.Errorf("urgency marker alone should score 50, got %d", result.Score)
	}
}
