package ticket

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates ticket lifecycle states. A ticket is never deleted; it
// only transitions forward through these states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidated  Status = "validated"
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
	StatusEscalated  Status = "escalated"
	StatusRejected   Status = "rejected"
	// StatusClosed marks a resolved ticket confirmed by the customer.
	StatusClosed Status = "closed"
)

// Priority tiers derived from the urgency score.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Category is the closed classification taxonomy.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryBilling        Category = "billing"
	CategoryAccount        Category = "account"
	CategoryTechnical      Category = "technical"
	CategoryNetwork        Category = "network"
	CategoryData           Category = "data"
	CategoryGeneral        Category = "general"
)

// Categories lists every valid category value.
func Categories() []Category {
	return []Category{
		CategoryAuthentication,
		CategoryBilling,
		CategoryAccount,
		CategoryTechnical,
		CategoryNetwork,
		CategoryData,
		CategoryGeneral,
	}
}

// Severity tiers. SeverityCritical is the top tier and forces escalation
// regardless of classification confidence.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Treatment describes how a resolution should be delivered.
type Treatment string

const (
	TreatmentSelfService Treatment = "self_service"
	TreatmentGuided      Treatment = "guided"
	TreatmentSpecialist  Treatment = "specialist"
)

// ResolutionPath is the planner's routing decision.
type ResolutionPath string

const (
	PathKBRetrieval ResolutionPath = "kb_retrieval"
	PathEscalation  ResolutionPath = "escalation"
)

// Ticket is the aggregate processed by the pipeline. Fields below the
// identity block are populated progressively, one stage at a time.
type Ticket struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	CustomerID  string `json:"customer_id"`

	Status   Status   `json:"status"`
	Valid    bool     `json:"valid"`
	Score    int      `json:"score"`
	Priority Priority `json:"priority"`

	Classification *Classification `json:"classification,omitempty"`
	Plan           *QueryPlan      `json:"plan,omitempty"`

	Solution   string  `json:"solution,omitempty"`
	Confidence float64 `json:"confidence"`
	Escalated  bool    `json:"escalated"`
	Attempt    int     `json:"attempt"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a pending ticket with a generated identifier.
func New(subject, description, customerID string) *Ticket {
	now := time.Now().UTC()
	return &Ticket{
		ID:          uuid.NewString(),
		Subject:     subject,
		Description: description,
		CustomerID:  customerID,
		Status:      StatusPending,
		Attempt:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Text returns the subject and description joined for analysis.
func (t *Ticket) Text() string {
	if t.Subject == "" {
		return t.Description
	}
	if t.Description == "" {
		return t.Subject
	}
	return t.Subject + "\n" + t.Description
}

// SetStatus transitions the ticket and stamps the update time.
func (t *Ticket) SetStatus(s Status) {
	t.Status = s
	t.UpdatedAt = time.Now().UTC()
}

// Terminal reports whether the ticket reached a final state.
func (t *Ticket) Terminal() bool {
	switch t.Status {
	case StatusResolved, StatusEscalated, StatusRejected, StatusClosed:
		return true
	}
	return false
}

// QueryPlan is the planner's output: a retrieval-ready reformulation of the
// ticket plus the routing decision for the rest of the pipeline.
type QueryPlan struct {
	Query    string   `json:"query"`    // Reformulated problem statement
	Original bool     `json:"original"` // True when the fidelity check rejected the reformulation
	Keywords []string `json:"keywords"`
	Entities []string `json:"entities,omitempty"`

	Classification Classification `json:"classification"`

	Path ResolutionPath `json:"path"`
	// EscalationPreArmed tells the evaluator to apply the stricter
	// escalation threshold even though retrieval still runs.
	EscalationPreArmed bool `json:"escalation_pre_armed"`
}

// EscalationRecord is the append-only handoff snapshot for a human agent.
// Records are never mutated after creation.
type EscalationRecord struct {
	ID        string    `json:"id" bson:"_id"`
	TicketID  string    `json:"ticket_id" bson:"ticket_id"`
	Reason    string    `json:"reason" bson:"reason"`
	Team      string    `json:"team" bson:"team"`
	Context   string    `json:"context" bson:"context"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
