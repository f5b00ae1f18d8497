package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/ticket"
)

// EscalationStore persists escalation records. A MongoDB implementation
// lives in contrib/escalation/mongo.
type EscalationStore interface {
	Save(ctx context.Context, record *ticket.EscalationRecord) error
}

// MemoryEscalationStore keeps escalation records in process, mostly for
// tests and the in-memory example.
type MemoryEscalationStore struct {
	mu      sync.RWMutex
	records []*ticket.EscalationRecord
}

// NewMemoryEscalationStore creates an empty in-process store.
func NewMemoryEscalationStore() *MemoryEscalationStore {
	return &MemoryEscalationStore{}
}

// Save appends one record.
func (s *MemoryEscalationStore) Save(ctx context.Context, record *ticket.EscalationRecord) error {
	if record == nil {
		return fmt.Errorf("escalation record cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// Records returns a snapshot of everything saved so far.
func (s *MemoryEscalationStore) Records() []*ticket.EscalationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ticket.EscalationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// EscalationManager snapshots a ticket for a human agent and routes it to a
// team. Recording only; notifying the team is someone else's job.
type EscalationManager struct {
	store EscalationStore
}

// NewEscalationManager builds a manager backed by store (in-memory when nil).
func NewEscalationManager(store EscalationStore) *EscalationManager {
	if store == nil {
		store = NewMemoryEscalationStore()
	}
	return &EscalationManager{store: store}
}

// Escalate creates and persists the handoff record.
func (m *EscalationManager) Escalate(ctx context.Context, t *ticket.Ticket, sol *Solution, reasons []string) (*ticket.EscalationRecord, error) {
	var cls ticket.Classification
	if t.Classification != nil {
		cls = *t.Classification
	}

	record := &ticket.EscalationRecord{
		ID:        uuid.NewString(),
		TicketID:  t.ID,
		Reason:    strings.Join(reasons, ","),
		Team:      RouteTeam(cls),
		Context:   buildContext(t, sol),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save escalation: %w", err)
	}

	logging.WithComponent("escalation").Info("ticket escalated",
		"ticket_id", t.ID, "team", record.Team, "reason", record.Reason)
	return record, nil
}

// RouteTeam derives the target queue from the required-skill tags, falling
// back to the category.
func RouteTeam(cls ticket.Classification) string {
	for _, skill := range cls.Skills {
		switch strings.ToLower(skill) {
		case "billing", "payments", "refunds":
			return "billing"
		case "security", "privacy":
			return "security"
		case "network", "infrastructure":
			return "network-ops"
		case "database", "data":
			return "data-platform"
		}
	}

	switch cls.Category {
	case ticket.CategoryBilling:
		return "billing"
	case ticket.CategoryAuthentication, ticket.CategoryAccount:
		return "identity"
	case ticket.CategoryNetwork:
		return "network-ops"
	case ticket.CategoryTechnical, ticket.CategoryData:
		return "engineering"
	default:
		return "support"
	}
}

// buildContext captures ticket, classification, and top retrieval in one
// free-text snapshot for the human agent.
func buildContext(t *ticket.Ticket, sol *Solution) string {
	snapshot := map[string]any{
		"subject":     t.Subject,
		"description": t.Description,
		"score":       t.Score,
		"priority":    t.Priority,
		"attempt":     t.Attempt,
	}
	if t.Classification != nil {
		snapshot["classification"] = t.Classification
	}
	if sol != nil && sol.Text != "" {
		snapshot["top_chunk"] = sol.Text
		snapshot["mean_similarity"] = sol.MeanSimilarity
	}
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return t.Text()
	}
	return string(raw)
}
