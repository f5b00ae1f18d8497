package ticket

import (
	"math"
	"testing"
)

func TestOverallBlendsWeights(t *testing.T) {
	cls := Classification{
		CategoryConfidence:  1.0,
		SeverityConfidence:  0.5,
		TreatmentConfidence: 0.5,
		SkillConfidence:     0.0,
	}
	want := 1.0*CategoryConfidenceWeight + 0.5*SeverityConfidenceWeight + 0.5*TreatmentConfidenceWeight
	if got := cls.Overall(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Overall = %f, want %f", got, want)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	sum := CategoryConfidenceWeight + SeverityConfidenceWeight + TreatmentConfidenceWeight + SkillConfidenceWeight
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("confidence weights must sum to 1, got %f", sum)
	}
}

func TestNormalization(t *testing.T) {
	if NormalizeCategory("billing") != CategoryBilling {
		t.Error("valid category must pass through")
	}
	if NormalizeCategory("made-up") != CategoryGeneral {
		t.Error("unknown category must map to general")
	}
	if NormalizeSeverity("catastrophic") != SeverityMedium {
		t.Error("unknown severity must map to medium")
	}
	if NormalizeTreatment("psychic") != TreatmentGuided {
		t.Error("unknown treatment must map to guided")
	}
}

func TestTicketLifecycle(t *testing.T) {
	tk := New("Subject", "Description", "cust-1")
	if tk.Status != StatusPending || tk.Attempt != 1 {
		t.Fatalf("new ticket: status %s attempt %d", tk.Status, tk.Attempt)
	}
	if tk.Terminal() {
		t.Error("pending ticket is not terminal")
	}
	tk.SetStatus(StatusEscalated)
	if !tk.Terminal() {
		t.Error("escalated ticket is terminal")
	}
}

func TestTicketText(t *testing.T) {
	tk := &Ticket{Subject: "A", Description: "B"}
	if tk.Text() != "A\nB" {
		t.Errorf("unexpected text %q", tk.Text())
	}
	if (&Ticket{Description: "B"}).Text() != "B" {
		t.Error("subject-less ticket should return description")
	}
}
