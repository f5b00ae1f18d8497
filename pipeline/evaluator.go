package pipeline

import (
	"context"
	"fmt"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/reason"
	"github.com/triagehq/triage/ticket"
)

// Evaluation is the escalation decision for one attempt.
type Evaluation struct {
	Confidence float64       `json:"confidence"`
	Escalate   bool          `json:"escalate"`
	Reasons    []string      `json:"reasons,omitempty"`
	Source     reason.Source `json:"source"`
}

const evaluatorSystemPrompt = `You judge how well a proposed knowledge-base answer fits a support ticket. Reply with JSON only:
{"adjustment": 0.0-1.0}
0.5 means the answer is an average fit, above 0.5 a good fit, below 0.5 a poor fit.`

type adjustmentAnswer struct {
	Adjustment float64 `json:"adjustment"`
}

// Evaluator combines retrieval confidence, priority, classification
// confidence, and a small model-judged adjustment into one confidence value,
// then applies three independent escalation checks. Each check escalates on
// its own; in particular the sensitive-data check can never be overridden by
// a high confidence score.
type Evaluator struct {
	client reason.Client
	cfg    *config.Config
}

// NewEvaluator builds an evaluator. client may be nil; the adjustment term
// then stays at its neutral value.
func NewEvaluator(client reason.Client, cfg *config.Config) *Evaluator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Evaluator{client: client, cfg: cfg}
}

// Evaluate decides whether the candidate solution is trustworthy enough to
// send, or whether the ticket must go to a human.
func (e *Evaluator) Evaluate(ctx context.Context, t *ticket.Ticket, cls ticket.Classification, sol *Solution) *Evaluation {
	adjustment, source := e.adjustment(ctx, t, sol)

	retrievalConfidence := 0.0
	if sol != nil {
		if sol.KBConfident {
			retrievalConfidence = 1.0
		} else if e.cfg.Thresholds.KBConfidence > 0 {
			retrievalConfidence = clampUnit(sol.MeanSimilarity / e.cfg.Thresholds.KBConfidence)
		}
	}

	confidence := e.cfg.Weights.Retrieval*retrievalConfidence +
		e.cfg.Weights.Priority*priorityConfidence(t.Priority) +
		e.cfg.Weights.Classification*cls.Overall() +
		e.cfg.Weights.Adjustment*adjustment

	threshold := e.cfg.Thresholds.Escalation
	if t.Plan != nil && t.Plan.EscalationPreArmed {
		threshold += e.cfg.Thresholds.PreArmedDelta
	}

	ev := &Evaluation{Confidence: confidence, Source: source}

	if confidence < threshold {
		ev.Escalate = true
		ev.Reasons = append(ev.Reasons, ReasonLowConfidence)
	}
	if kinds := DetectSensitiveData(t.Text()); len(kinds) > 0 {
		ev.Escalate = true
		ev.Reasons = append(ev.Reasons, ReasonSensitiveData)
		logging.WithComponent("evaluator").Info("sensitive data found",
			"ticket_id", t.ID, "kinds", fmt.Sprintf("%v", kinds))
	}
	if NegativeSentiment(t.Text()) && confidence < threshold {
		ev.Escalate = true
		ev.Reasons = append(ev.Reasons, ReasonNegativeTone)
	}

	return ev
}

// adjustment asks the model for the small fit-adjustment term. Any failure
// yields the neutral 0.5 so the deterministic checks stay in charge.
func (e *Evaluator) adjustment(ctx context.Context, t *ticket.Ticket, sol *Solution) (float64, reason.Source) {
	if e.client == nil || sol == nil || sol.Text == "" {
		return 0.5, reason.SourceHeuristic
	}

	answer, err := reason.GenerateJSON[adjustmentAnswer](
		ctx, e.client, e.cfg.Limits.ReasonTimeout,
		evaluatorSystemPrompt,
		fmt.Sprintf("Ticket:\n%s\n\nProposed answer:\n%s", t.Text(), sol.Text),
	)
	if err != nil {
		logging.WithComponent("evaluator").Warn("adjustment fell back to neutral",
			"error", err, "transient", errors.IsTransient(err))
		return 0.5, reason.SourceHeuristic
	}
	return clampUnit(answer.Adjustment), reason.SourceModel
}

func priorityConfidence(p ticket.Priority) float64 {
	switch p {
	case ticket.PriorityHigh:
		return 0.9
	case ticket.PriorityMedium:
		return 0.7
	default:
		return 0.5
	}
}
