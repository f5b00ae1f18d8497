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

// ValidationResult reports whether a ticket carries enough information to
// act on.
type ValidationResult struct {
	Valid      bool          `json:"valid"`
	Reasons    []string      `json:"reasons,omitempty"`
	Confidence float64       `json:"confidence"`
	Source     reason.Source `json:"source"`
}

// genericSubjects are subjects that name no concrete problem.
var genericSubjects = map[string]bool{
	"help":    true,
	"urgent":  true,
	"issue":   true,
	"problem": true,
	"broken":  true,
	"error":   true,
}

// vaguePhrases are descriptions that say nothing actionable on their own.
var vaguePhrases = []string{
	"it doesn't work",
	"it does not work",
	"doesn't work",
	"not working",
	"nothing works",
	"please help",
	"fix it",
}

const validatorSystemPrompt = `You review incoming support tickets. Decide whether the ticket contains enough concrete information for an agent to act on. Reply with JSON only:
{"valid": true|false, "reasons": ["..."], "confidence": 0.0-1.0}
Reasons are required when valid is false and must name what is missing.`

// Validator rejects ill-formed tickets before any expensive work happens.
// With a reasoning client it asks the model; on any failure it falls back to
// deterministic length and vagueness checks at a visibly lower confidence.
type Validator struct {
	client reason.Client
	cfg    *config.Config
}

// NewValidator builds a validator. client may be nil for heuristic-only
// operation.
func NewValidator(client reason.Client, cfg *config.Config) *Validator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Validator{client: client, cfg: cfg}
}

// Validate checks one ticket. Reasoning-service errors never propagate; they
// only downgrade the result to heuristic mode.
func (v *Validator) Validate(ctx context.Context, t *ticket.Ticket) *ValidationResult {
	if answer, err := reason.GenerateJSON[ValidationResult](
		ctx, v.client, v.cfg.Limits.ReasonTimeout,
		validatorSystemPrompt,
		fmt.Sprintf("Subject: %s\nDescription: %s", t.Subject, t.Description),
	); err == nil {
		answer.Source = reason.SourceModel
		// zero is a legal confidence; only out-of-range replies are corrected
		if answer.Confidence < 0 || answer.Confidence > 1 {
			answer.Confidence = 0.9
		}
		if !answer.Valid && len(answer.Reasons) == 0 {
			answer.Reasons = []string{"insufficient detail to act on"}
		}
		return answer
	} else if v.client != nil {
		logging.WithComponent("validator").Warn("falling back to heuristic",
			"error", err, "transient", errors.IsTransient(err))
	}

	return v.heuristic(t)
}

// heuristic is the deterministic baseline: minimum lengths plus a vague
// phrase list. Its confidence is fixed below the model path so downstream
// stages can discount it.
func (v *Validator) heuristic(t *ticket.Ticket) *ValidationResult {
	var reasons []string

	subject := strings.TrimSpace(t.Subject)
	description := strings.TrimSpace(t.Description)

	if len(subject) < v.cfg.Limits.MinSubjectLen {
		reasons = append(reasons, fmt.Sprintf("subject too short (minimum %d characters)", v.cfg.Limits.MinSubjectLen))
	}
	if genericSubjects[strings.ToLower(subject)] {
		reasons = append(reasons, "subject does not name a concrete problem")
	}
	if len(description) < v.cfg.Limits.MinDescriptionLen {
		reasons = append(reasons, fmt.Sprintf("description too short (minimum %d characters)", v.cfg.Limits.MinDescriptionLen))
	}
	lower := strings.ToLower(description)
	for _, phrase := range vaguePhrases {
		if strings.Contains(lower, phrase) && len(lower) < 2*v.cfg.Limits.MinDescriptionLen {
			reasons = append(reasons, "description gives insufficient detail, describe what failed and what you expected")
			break
		}
	}

	return &ValidationResult{
		Valid:      len(reasons) == 0,
		Reasons:    reasons,
		Confidence: 0.6,
		Source:     reason.SourceHeuristic,
	}
}
