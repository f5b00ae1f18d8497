// Package pipeline implements the confidence-gated ticket-resolution
// workflow: validate, score, plan, retrieve, evaluate, respond, with a
// bounded feedback loop and escalation to a human when any gate fails.
//
// Per-ticket processing is sequential; a Pipeline holds no cross-ticket
// mutable state beyond the shared read-mostly knowledge store, so one
// Pipeline may serve many tickets concurrently.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/graph"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/pkg/telemetry"
	"github.com/triagehq/triage/reason"
	"github.com/triagehq/triage/retriever"
	"github.com/triagehq/triage/ticket"
	"github.com/triagehq/triage/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Graph node names. Feedback re-enters at nodePlan.
const (
	nodeValidate       = "validate"
	nodeValidationGate = "validation_gate"
	nodeReject         = "reject"
	nodeScore          = "score"
	nodePlan           = "plan"
	nodeRoute          = "route"
	nodeRetrieve       = "retrieve"
	nodeEvaluate       = "evaluate"
	nodeDecision       = "decision"
	nodeRespond        = "respond"
	nodeEscalate       = "escalate"
)

// Graph state keys.
const (
	keyTicket     = "ticket"
	keyValidation = "validation"
	keyScore      = "score"
	keySolution   = "solution"
	keyEvaluation = "evaluation"
	keyResolution = "resolution"
)

// Resolution is the pipeline's exit value, shaped for the surrounding
// web-API layer.
type Resolution struct {
	Status     ticket.Status            `json:"status"`
	Message    string                   `json:"message"`
	Confidence float64                  `json:"confidence"`
	Category   ticket.Category          `json:"category,omitempty"`
	Escalation *ticket.EscalationRecord `json:"escalation_record,omitempty"`
}

type options struct {
	client   reason.Client
	embedder vector.Embedder
	store    EscalationStore
}

// Option customizes pipeline construction.
type Option func(*options)

// WithReasonClient enables the model path for every stage that has one.
// Without it the pipeline runs heuristics only.
func WithReasonClient(client reason.Client) Option {
	return func(o *options) { o.client = client }
}

// WithFidelityEmbedder enables the planner's reformulation-fidelity check.
func WithFidelityEmbedder(embedder vector.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// WithEscalationStore replaces the in-memory escalation store.
func WithEscalationStore(store EscalationStore) Option {
	return func(o *options) { o.store = store }
}

// Pipeline sequences the stages for one ticket at a time.
type Pipeline struct {
	cfg       *config.Config
	validator *Validator
	scorer    *Scorer
	planner   *QueryPlanner
	finder    *SolutionFinder
	evaluator *Evaluator
	escalator *EscalationManager
	flow      *graph.Graph
	logger    *slog.Logger
}

// New builds the pipeline around a retriever. Configuration problems are
// returned here, before any ticket is accepted.
func New(cfg *config.Config, r *retriever.Retriever, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("pipeline: retriever is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		cfg:       cfg,
		validator: NewValidator(o.client, cfg),
		scorer:    NewScorer(o.client, cfg),
		planner:   NewQueryPlanner(o.client, o.embedder, cfg),
		finder:    NewSolutionFinder(r, cfg),
		evaluator: NewEvaluator(o.client, cfg),
		escalator: NewEscalationManager(o.store),
		logger:    logging.WithComponent("pipeline"),
	}
	p.flow = p.buildFlow()
	return p, nil
}

func (p *Pipeline) buildFlow() *graph.Graph {
	return graph.NewBuilder().
		AddStage(nodeValidate, p.validateNode).
		AddCondition(nodeValidationGate, p.validationGate, map[string]string{
			"valid":   nodeScore,
			"invalid": nodeReject,
		}).
		AddEnd(nodeReject, p.rejectNode).
		AddStage(nodeScore, p.scoreNode).
		AddStage(nodePlan, p.planNode).
		AddCondition(nodeRoute, p.routeCondition, map[string]string{
			"retrieve": nodeRetrieve,
			"escalate": nodeEscalate,
		}).
		AddStage(nodeRetrieve, p.retrieveNode).
		AddStage(nodeEvaluate, p.evaluateNode).
		AddCondition(nodeDecision, p.decisionCondition, map[string]string{
			"respond":  nodeRespond,
			"escalate": nodeEscalate,
		}).
		AddEnd(nodeRespond, p.respondNode).
		AddEnd(nodeEscalate, p.escalateNode).
		Edge(nodeValidate, nodeValidationGate).
		Edge(nodeScore, nodePlan).
		Edge(nodePlan, nodeRoute).
		Edge(nodeRetrieve, nodeEvaluate).
		Edge(nodeEvaluate, nodeDecision).
		Start(nodeValidate).
		Build()
}

// Run processes one ticket from submission to a terminal state. Partial
// progress on the ticket is preserved when ctx is canceled mid-pipeline.
func (p *Pipeline) Run(ctx context.Context, t *ticket.Ticket) (*Resolution, error) {
	if t == nil {
		return nil, fmt.Errorf("pipeline: ticket is required: %w", errors.ErrInvalidInput)
	}

	tracer := otel.Tracer("triage/pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run")
	span.SetAttributes(attribute.String("ticket_id", t.ID))
	var runErr error
	defer func() { telemetry.End(span, runErr) }()

	state, err := p.flow.Execute(ctx, graph.State{keyTicket: t}, "")
	if err != nil {
		runErr = err
		return nil, err
	}

	var res *Resolution
	res, runErr = resolutionFrom(state)
	if runErr == nil {
		span.SetAttributes(attribute.String("status", string(res.Status)))
	}
	return res, runErr
}

// Feedback applies a customer's reaction to a resolved ticket. Satisfaction
// closes the ticket. Dissatisfaction re-enters planning with the attempt
// counter bumped, until the attempt budget is spent; then the ticket goes to
// a human. Validation and scoring are not re-run on retries.
func (p *Pipeline) Feedback(ctx context.Context, t *ticket.Ticket, satisfied bool) (*Resolution, error) {
	if t == nil {
		return nil, fmt.Errorf("pipeline: ticket is required: %w", errors.ErrInvalidInput)
	}
	if t.Status != ticket.StatusResolved {
		return nil, fmt.Errorf("pipeline: feedback applies to resolved tickets, ticket %s is %s: %w",
			t.ID, t.Status, errors.ErrInvalidInput)
	}

	if satisfied {
		t.SetStatus(ticket.StatusClosed)
		return &Resolution{
			Status:     ticket.StatusClosed,
			Message:    "Glad we could help. This ticket is now closed.",
			Confidence: t.Confidence,
			Category:   categoryOf(t),
		}, nil
	}

	if t.Attempt >= p.cfg.Limits.MaxAttempts {
		p.logger.Info("attempt budget exhausted", "ticket_id", t.ID, "attempt", t.Attempt)
		record, err := p.escalator.Escalate(ctx, t, nil, []string{ReasonAttemptsExhaust})
		if err != nil {
			return nil, err
		}
		t.Escalated = true
		t.SetStatus(ticket.StatusEscalated)
		return &Resolution{
			Status:     ticket.StatusEscalated,
			Message:    ComposeEscalation(t),
			Confidence: t.Confidence,
			Category:   categoryOf(t),
			Escalation: record,
		}, nil
	}

	t.Attempt++
	t.SetStatus(ticket.StatusProcessing)
	p.logger.Info("retrying ticket", "ticket_id", t.ID, "attempt", t.Attempt)

	state, err := p.flow.Execute(ctx, graph.State{keyTicket: t}, nodePlan)
	if err != nil {
		return nil, err
	}
	return resolutionFrom(state)
}

func (p *Pipeline) validateNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	result := p.validator.Validate(ctx, t)
	t.Valid = result.Valid
	if result.Valid {
		t.SetStatus(ticket.StatusValidated)
	}
	state[keyValidation] = result
	return state, nil
}

func (p *Pipeline) validationGate(ctx context.Context, state graph.State) (string, error) {
	if state[keyValidation].(*ValidationResult).Valid {
		return "valid", nil
	}
	return "invalid", nil
}

func (p *Pipeline) rejectNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	validation := state[keyValidation].(*ValidationResult)
	t.SetStatus(ticket.StatusRejected)
	p.logger.Info("ticket rejected", "ticket_id", t.ID, "reasons", len(validation.Reasons))
	state[keyResolution] = &Resolution{
		Status:     ticket.StatusRejected,
		Message:    ComposeRejection(t, validation.Reasons),
		Confidence: validation.Confidence,
	}
	return state, nil
}

func (p *Pipeline) scoreNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	t.SetStatus(ticket.StatusProcessing)
	result := p.scorer.Score(ctx, t)
	t.Score = result.Score
	t.Priority = result.Priority
	state[keyScore] = result
	return state, nil
}

func (p *Pipeline) planNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	plan := p.planner.Plan(ctx, t)
	t.Plan = plan
	t.Classification = &plan.Classification
	p.logger.Debug("ticket planned",
		"ticket_id", t.ID,
		"category", plan.Classification.Category,
		"path", plan.Path,
		"attempt", t.Attempt,
	)
	return state, nil
}

func (p *Pipeline) routeCondition(ctx context.Context, state graph.State) (string, error) {
	t := state[keyTicket].(*ticket.Ticket)
	if t.Plan.Path == ticket.PathEscalation {
		return "escalate", nil
	}
	return "retrieve", nil
}

func (p *Pipeline) retrieveNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	sol, err := p.finder.Find(ctx, t, t.Plan)
	if err != nil {
		return state, err
	}
	t.Solution = sol.Text
	state[keySolution] = sol
	return state, nil
}

func (p *Pipeline) evaluateNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	sol, _ := state[keySolution].(*Solution)
	ev := p.evaluator.Evaluate(ctx, t, *t.Classification, sol)
	t.Confidence = ev.Confidence
	state[keyEvaluation] = ev
	return state, nil
}

func (p *Pipeline) decisionCondition(ctx context.Context, state graph.State) (string, error) {
	ev := state[keyEvaluation].(*Evaluation)
	if ev.Escalate {
		return "escalate", nil
	}
	return "respond", nil
}

func (p *Pipeline) respondNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	t.SetStatus(ticket.StatusResolved)
	state[keyResolution] = &Resolution{
		Status:     ticket.StatusResolved,
		Message:    ComposeResponse(t, t.Solution),
		Confidence: t.Confidence,
		Category:   categoryOf(t),
	}
	return state, nil
}

func (p *Pipeline) escalateNode(ctx context.Context, state graph.State) (graph.State, error) {
	t := state[keyTicket].(*ticket.Ticket)
	sol, _ := state[keySolution].(*Solution)

	reasons := escalationReasons(state, t)
	record, err := p.escalator.Escalate(ctx, t, sol, reasons)
	if err != nil {
		return state, err
	}

	t.Escalated = true
	t.SetStatus(ticket.StatusEscalated)
	state[keyResolution] = &Resolution{
		Status:     ticket.StatusEscalated,
		Message:    ComposeEscalation(t),
		Confidence: t.Confidence,
		Category:   categoryOf(t),
		Escalation: record,
	}
	return state, nil
}

// escalationReasons recovers why the ticket is being handed off: the
// evaluator's reasons when it ran, otherwise the planner's routing decision.
func escalationReasons(state graph.State, t *ticket.Ticket) []string {
	if ev, ok := state[keyEvaluation].(*Evaluation); ok && len(ev.Reasons) > 0 {
		return ev.Reasons
	}
	if t.Classification != nil && t.Classification.Severity == ticket.SeverityCritical {
		return []string{ReasonCriticalTicket}
	}
	return []string{ReasonPlannerGiveUp}
}

func resolutionFrom(state graph.State) (*Resolution, error) {
	res, ok := state[keyResolution].(*Resolution)
	if !ok {
		return nil, fmt.Errorf("pipeline: flow ended without a resolution")
	}
	return res, nil
}

func categoryOf(t *ticket.Ticket) ticket.Category {
	if t.Classification == nil {
		return ""
	}
	return t.Classification.Category
}
