package pipeline

import (
	"context"
	"testing"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/ticket"
)

func confidentClassification() ticket.Classification {
	return ticket.Classification{
		Category:            ticket.CategoryAuthentication,
		Severity:            ticket.SeverityMedium,
		Treatment:           ticket.TreatmentSelfService,
		Skills:              []string{"authentication"},
		CategoryConfidence:  0.9,
		SeverityConfidence:  0.9,
		TreatmentConfidence: 0.9,
		SkillConfidence:     0.9,
	}
}

func confidentSolution() *Solution {
	return &Solution{
		Text:           "Reset your password from the login page.",
		ChunkID:        "c1",
		MeanSimilarity: 0.85,
		KBConfident:    true,
	}
}

func TestEvaluatorResolvesConfidentTicket(t *testing.T) {
	e := NewEvaluator(nil, config.DefaultConfig())
	tk := ticket.New("Cannot log in", "My password reset link expired before I could open it.", "cust-1")
	tk.Priority = ticket.PriorityMedium

	ev := e.Evaluate(context.Background(), tk, confidentClassification(), confidentSolution())
	if ev.Escalate {
		t.Fatalf("expected no escalation, reasons %v", ev.Reasons)
	}
	if ev.Confidence < config.DefaultEscalationThreshold {
		t.Errorf("expected confidence above threshold, got %f", ev.Confidence)
	}
}

func TestEvaluatorLowConfidenceEscalates(t *testing.T) {
	e := NewEvaluator(nil, config.DefaultConfig())
	tk := ticket.New("Strange problem", "Something somewhere is occasionally behaving oddly in some way.", "cust-2")
	tk.Priority = ticket.PriorityLow

	ev := e.Evaluate(context.Background(), tk, ticket.Classification{CategoryConfidence: 0.3}, &Solution{MeanSimilarity: 0.2})
	if !ev.Escalate {
		t.Fatal("expected escalation")
	}
	if !containsString(ev.Reasons, ReasonLowConfidence) {
		t.Errorf("expected %s reason, got %v", ReasonLowConfidence, ev.Reasons)
	}
}

func TestEvaluatorSensitiveDataOverridesConfidence(t *testing.T) {
	e := NewEvaluator(nil, config.DefaultConfig())
	tk := ticket.New("Billing question", "I was charged twice, my card number is 4111 1111 1111 1111, please check.", "cust-3")
	tk.Priority = ticket.PriorityHigh

	ev := e.Evaluate(context.Background(), tk, confidentClassification(), confidentSolution())
	if ev.Confidence < config.DefaultEscalationThreshold {
		t.Fatalf("test setup wrong: confidence %f should be high", ev.Confidence)
	}
	if !ev.Escalate {
		t.Fatal("payment-card pattern must escalate regardless of confidence")
	}
	if !containsString(ev.Reasons, ReasonSensitiveData) {
		t.Errorf("expected %s reason, got %v", ReasonSensitiveData, ev.Reasons)
	}
}

func TestEvaluatorSentimentAloneDoesNotEscalate(t *testing.T) {
	e := NewEvaluator(nil, config.DefaultConfig())
	tk := ticket.New("Cannot log in", "This is frustrating, my password reset link expired before I could open it.", "cust-4")
	tk.Priority = ticket.PriorityMedium

	ev := e.Evaluate(context.Background(), tk, confidentClassification(), confidentSolution())
	if ev.Escalate {
		t.Fatalf("negative sentiment with high confidence must not escalate, reasons %v", ev.Reasons)
	}
}

func TestEvaluatorPreArmedTightensThreshold(t *testing.T) {
	e := NewEvaluator(nil, config.DefaultConfig())
	cls := ticket.Classification{
		Category:            ticket.CategoryGeneral,
		Severity:            ticket.SeverityMedium,
		CategoryConfidence:  0.6,
		SeverityConfidence:  0.6,
		TreatmentConfidence: 0.6,
		SkillConfidence:     0.6,
	}
	sol := &Solution{Text: "Some answer.", MeanSimilarity: 0.72, KBConfident: true}

	plain := ticket.New("A question", "A reasonably detailed question about a middling concern of ours.", "cust-5")
	plain.Priority = ticket.PriorityLow
	plain.Plan = &ticket.QueryPlan{}
	if ev := e.Evaluate(context.Background(), plain, cls, sol); ev.Escalate {
		t.Fatalf("plain threshold should pass, confidence %f reasons %v", ev.Confidence, ev.Reasons)
	}

	armed := ticket.New("A question", "A reasonably detailed question about a middling concern of ours.", "cust-6")
	armed.Priority = ticket.PriorityLow
	armed.Plan = &ticket.QueryPlan{EscalationPreArmed: true}
	if ev := e.Evaluate(context.Background(), armed, cls, sol); !ev.Escalate {
		t.Fatalf("pre-armed threshold should escalate, confidence %f", ev.Confidence)
	}
}

func TestDetectSensitiveData(t *testing.T) {
	cases := []struct {
		name string
		text string
		kind string
	}{
		{"email", "reach me at jane.doe@example.com please", "email"},
		{"card with spaces", "card 4111 1111 1111 1111 was charged", "payment_card"},
		{"card with dashes", "card 4111-1111-1111-1111 was charged", "payment_card"},
		{"government id", "my ssn is 123-45-6789", "government_id"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if !containsString(DetectSensitiveData(c.text), c.kind) {
				t.Errorf("expected %s detected in %q", c.kind, c.text)
			}
		})
	}

	if kinds := DetectSensitiveData("the printer on floor three is out of toner"); len(kinds) != 0 {
		t.Errorf("expected no findings, got %v", kinds)
	}
}

func TestNegativeSentiment(t *testing.T) {
	if !NegativeSentiment("this is absolutely unacceptable and I am furious") {
		t.Error("expected negative sentiment")
	}
	if NegativeSentiment("thanks for the quick turnaround last time") {
		t.Error("expected neutral sentiment")
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
