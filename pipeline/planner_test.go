package pipeline

import (
	"context"
	"testing"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/ticket"
)

// axisEmbedder maps every text to a fixed axis so the fidelity check can be
// steered: identical vectors for faithful, orthogonal ones for drift.
type axisEmbedder struct {
	orthogonal bool
}

func (e axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		if e.orthogonal && i > 0 {
			out[i] = []float32{0, 1, 0}
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (e axisEmbedder) Dimension() int { return 3 }

func TestPlannerHeuristicClassification(t *testing.T) {
	p := NewQueryPlanner(nil, nil, config.DefaultConfig())

	t.Run("authentication ticket", func(t *testing.T) {
		tk := ticket.New("Cannot log in", "My password reset link expired and I cannot access my account anymore.", "cust-1")
		plan := p.Plan(context.Background(), tk)
		if plan.Classification.Category != ticket.CategoryAuthentication {
			t.Errorf("expected authentication, got %s", plan.Classification.Category)
		}
		if !plan.Original {
			t.Error("heuristic plan must keep the original wording")
		}
		if plan.Path != ticket.PathKBRetrieval {
			t.Errorf("expected kb_retrieval path, got %s", plan.Path)
		}
	})

	t.Run("billing ticket", func(t *testing.T) {
		tk := ticket.New("Double charge on invoice", "My last invoice shows the subscription charge twice and I would like a refund.", "cust-2")
		plan := p.Plan(context.Background(), tk)
		if plan.Classification.Category != ticket.CategoryBilling {
			t.Errorf("expected billing, got %s", plan.Classification.Category)
		}
	})

	t.Run("unmatched ticket falls to general", func(t *testing.T) {
		tk := ticket.New("Misc question", "Where can I find the changelog for last month's release notes?", "cust-3")
		plan := p.Plan(context.Background(), tk)
		if plan.Classification.Category != ticket.CategoryGeneral {
			t.Errorf("expected general, got %s", plan.Classification.Category)
		}
	})
}

func TestPlannerPathDecision(t *testing.T) {
	p := NewQueryPlanner(nil, nil, config.DefaultConfig())

	t.Run("critical severity escalates regardless of confidence", func(t *testing.T) {
		plan := &ticket.QueryPlan{Classification: ticket.Classification{
			Severity:            ticket.SeverityCritical,
			CategoryConfidence:  0.95,
			SeverityConfidence:  0.95,
			TreatmentConfidence: 0.95,
			SkillConfidence:     0.95,
		}}
		p.decidePath(plan)
		if plan.Path != ticket.PathEscalation {
			t.Errorf("critical severity must escalate, got %s", plan.Path)
		}
	})

	t.Run("low confidence escalates", func(t *testing.T) {
		plan := &ticket.QueryPlan{Classification: ticket.Classification{
			Severity:           ticket.SeverityMedium,
			CategoryConfidence: 0.2,
		}}
		p.decidePath(plan)
		if plan.Path != ticket.PathEscalation {
			t.Errorf("confidence below give-up must escalate, got %s", plan.Path)
		}
	})

	t.Run("high confidence proceeds plainly", func(t *testing.T) {
		plan := &ticket.QueryPlan{Classification: ticket.Classification{
			Severity:            ticket.SeverityMedium,
			CategoryConfidence:  0.9,
			SeverityConfidence:  0.9,
			TreatmentConfidence: 0.9,
			SkillConfidence:     0.9,
		}}
		p.decidePath(plan)
		if plan.Path != ticket.PathKBRetrieval || plan.EscalationPreArmed {
			t.Errorf("expected plain kb_retrieval, got %s pre-armed=%v", plan.Path, plan.EscalationPreArmed)
		}
	})

	t.Run("middling confidence pre-arms escalation", func(t *testing.T) {
		plan := &ticket.QueryPlan{Classification: ticket.Classification{
			Severity:            ticket.SeverityMedium,
			CategoryConfidence:  0.6,
			SeverityConfidence:  0.6,
			TreatmentConfidence: 0.6,
			SkillConfidence:     0.6,
		}}
		p.decidePath(plan)
		if plan.Path != ticket.PathKBRetrieval || !plan.EscalationPreArmed {
			t.Errorf("expected pre-armed kb_retrieval, got %s pre-armed=%v", plan.Path, plan.EscalationPreArmed)
		}
	})
}

func TestPlannerFidelityCheck(t *testing.T) {
	reply := `{"query": "completely unrelated rewrite", "keywords": ["password", "reset", "link", "expired", "login"],
		"category": "authentication", "severity": "medium", "treatment": "self_service", "skills": ["authentication"],
		"category_confidence": 0.9, "severity_confidence": 0.9, "treatment_confidence": 0.9, "skill_confidence": 0.9}`

	t.Run("faithful reformulation is kept", func(t *testing.T) {
		p := NewQueryPlanner(&stubClient{replies: []string{reply}}, axisEmbedder{}, config.DefaultConfig())
		tk := ticket.New("Cannot log in", "My password reset link expired before I could use it.", "cust-4")
		plan := p.Plan(context.Background(), tk)
		if plan.Original {
			t.Error("faithful reformulation should be kept")
		}
		if plan.Query != "completely unrelated rewrite" {
			t.Errorf("unexpected query %q", plan.Query)
		}
	})

	t.Run("drifting reformulation is discarded", func(t *testing.T) {
		p := NewQueryPlanner(&stubClient{replies: []string{reply}}, axisEmbedder{orthogonal: true}, config.DefaultConfig())
		tk := ticket.New("Cannot log in", "My password reset link expired before I could use it.", "cust-5")
		plan := p.Plan(context.Background(), tk)
		if !plan.Original {
			t.Error("drifting reformulation must be discarded")
		}
		if plan.Query != tk.Text() {
			t.Errorf("expected original text, got %q", plan.Query)
		}
	})
}

func TestExtractKeywords(t *testing.T) {
	kws := extractKeywords("The payment payment payment failed for the invoice invoice during checkout with error codes")
	if len(kws) == 0 || len(kws) > 8 {
		t.Fatalf("expected 1-8 keywords, got %d", len(kws))
	}
	if kws[0] != "payment" {
		t.Errorf("most frequent term should rank first, got %q", kws[0])
	}
}

func TestExtractEntities(t *testing.T) {
	entities := extractEntities("After upgrading to v2.14.3 the sync fails with AUTH-503 and HTTP 502.")
	want := map[string]bool{"v2.14.3": false, "AUTH-503": false}
	for _, e := range entities {
		if _, ok := want[e]; ok {
			want[e] = true
		}
	}
	for entity, found := range want {
		if !found {
			t.Errorf("entity %s not extracted, got %v", entity, entities)
		}
	}
}
