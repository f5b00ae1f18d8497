package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/reason"
	"github.com/triagehq/triage/ticket"
)

// Score bands. A score below PriorityMediumFloor is low, at or above
// PriorityHighFloor is high.
const (
	PriorityMediumFloor = 35
	PriorityHighFloor   = 70
)

// Marker contributions of the heuristic formula. The model path must stay
// consistent with this baseline; the fallback implements it exactly.
const (
	scoreBase       = 10
	scoreUrgency    = 40
	scoreRecurrence = 20
	scoreImpact     = 30
)

var (
	urgencyMarkers    = []string{"urgent", "critical", "asap", "immediately", "emergency", "down", "outage", "cannot work", "can't work"}
	recurrenceMarkers = []string{"again", "recurring", "keeps", "repeatedly", "every time", "second time", "still happening"}
	impactMarkers     = []string{"production", "customers", "customer-facing", "clients", "revenue", "sla", "whole team", "everyone"}
)

// ScoreResult is the scorer's output.
type ScoreResult struct {
	Score     int             `json:"score"`
	Priority  ticket.Priority `json:"priority"`
	Reasoning string          `json:"reasoning"`
	Source    reason.Source   `json:"source"`
}

const scorerSystemPrompt = `You score support tickets for urgency and impact on a 0-100 scale. Start from 10, add 40 for explicit urgency language, 20 for recurrence, 30 for business impact, never exceed 100. Reply with JSON only:
{"score": 0-100, "reasoning": "..."}`

// Scorer computes the 0-100 priority score. The heuristic formula is the
// authoritative baseline; the model path is clamped onto the same scale.
type Scorer struct {
	client reason.Client
	cfg    *config.Config
}

// NewScorer builds a scorer. client may be nil for heuristic-only operation.
func NewScorer(client reason.Client, cfg *config.Config) *Scorer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scorer{client: client, cfg: cfg}
}

// Score rates one ticket. Deterministic for fixed input in heuristic mode.
func (s *Scorer) Score(ctx context.Context, t *ticket.Ticket) *ScoreResult {
	if answer, err := reason.GenerateJSON[ScoreResult](
		ctx, s.client, s.cfg.Limits.ReasonTimeout,
		scorerSystemPrompt, t.Text(),
	); err == nil {
		answer.Score = clampScore(answer.Score)
		answer.Priority = TierFor(answer.Score)
		answer.Source = reason.SourceModel
		return answer
	} else if s.client != nil {
		logging.WithComponent("scorer").Warn("falling back to heuristic",
			"error", err, "transient", errors.IsTransient(err))
	}

	return s.heuristic(t)
}

func (s *Scorer) heuristic(t *ticket.Ticket) *ScoreResult {
	text := strings.ToLower(t.Text())
	score := scoreBase
	var parts []string

	if containsAny(text, urgencyMarkers) {
		score += scoreUrgency
		parts = append(parts, "urgency language")
	}
	if containsAny(text, recurrenceMarkers) {
		score += scoreRecurrence
		parts = append(parts, "recurring issue")
	}
	if containsAny(text, impactMarkers) {
		score += scoreImpact
		parts = append(parts, "business impact")
	}
	score = clampScore(score)

	reasoning := "no priority markers found"
	if len(parts) > 0 {
		reasoning = fmt.Sprintf("matched: %s", strings.Join(parts, ", "))
	}

	return &ScoreResult{
		Score:     score,
		Priority:  TierFor(score),
		Reasoning: reasoning,
		Source:    reason.SourceHeuristic,
	}
}

// TierFor maps a score onto its priority tier.
func TierFor(score int) ticket.Priority {
	switch {
	case score >= PriorityHighFloor:
		return ticket.PriorityHigh
	case score >= PriorityMediumFloor:
		return ticket.PriorityMedium
	default:
		return ticket.PriorityLow
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
