package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/triagehq/triage/config"
	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/pkg/logging"
	"github.com/triagehq/triage/reason"
	"github.com/triagehq/triage/ticket"
	"github.com/triagehq/triage/vector"
)

const plannerSystemPrompt = `You plan knowledge-base searches for support tickets. Reformulate the ticket into one concise problem statement, extract 5-8 salient keywords, list domain entities (error codes, product names, version strings), and classify the ticket. Categories: authentication, billing, account, technical, network, data, general. Severities: critical, high, medium, low. Treatments: self_service, guided, specialist. Reply with JSON only:
{"query": "...", "keywords": ["..."], "entities": ["..."],
 "category": "...", "severity": "...", "treatment": "...", "skills": ["..."],
 "category_confidence": 0.0-1.0, "severity_confidence": 0.0-1.0,
 "treatment_confidence": 0.0-1.0, "skill_confidence": 0.0-1.0}`

// planAnswer is the model's raw plan before normalization.
type planAnswer struct {
	Query    string   `json:"query"`
	Keywords []string `json:"keywords"`
	Entities []string `json:"entities"`

	Category  string   `json:"category"`
	Severity  string   `json:"severity"`
	Treatment string   `json:"treatment"`
	Skills    []string `json:"skills"`

	CategoryConfidence  float64 `json:"category_confidence"`
	SeverityConfidence  float64 `json:"severity_confidence"`
	TreatmentConfidence float64 `json:"treatment_confidence"`
	SkillConfidence     float64 `json:"skill_confidence"`
}

// QueryPlanner reformulates a ticket into a retrieval-ready query, classifies
// it, and decides the resolution path. A reformulation that drifts too far
// from the original text is discarded by the fidelity check.
type QueryPlanner struct {
	client   reason.Client
	embedder vector.Embedder
	cfg      *config.Config
}

// NewQueryPlanner builds a planner. client may be nil for heuristic-only
// operation; embedder may be nil, which disables the fidelity check and
// always keeps the original wording.
func NewQueryPlanner(client reason.Client, embedder vector.Embedder, cfg *config.Config) *QueryPlanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &QueryPlanner{client: client, embedder: embedder, cfg: cfg}
}

// Plan produces the QueryPlan for one attempt. On retry the whole method is
// re-run, so the reformulation can differ between attempts.
func (p *QueryPlanner) Plan(ctx context.Context, t *ticket.Ticket) *ticket.QueryPlan {
	user := t.Text()
	if t.Attempt > 1 {
		user = fmt.Sprintf("%s\n\nAttempt %d: the previous search found no satisfying answer, reformulate differently.", t.Text(), t.Attempt)
	}

	answer, err := reason.GenerateJSON[planAnswer](
		ctx, p.client, p.cfg.Limits.ReasonTimeout, plannerSystemPrompt, user,
	)
	if err != nil {
		if p.client != nil {
			logging.WithComponent("planner").Warn("falling back to heuristic",
				"error", err, "transient", errors.IsTransient(err))
		}
		return p.heuristic(t)
	}

	cls := ticket.Classification{
		Category:            ticket.NormalizeCategory(ticket.Category(strings.ToLower(answer.Category))),
		Severity:            ticket.NormalizeSeverity(ticket.Severity(strings.ToLower(answer.Severity))),
		Treatment:           ticket.NormalizeTreatment(ticket.Treatment(strings.ToLower(answer.Treatment))),
		Skills:              answer.Skills,
		CategoryConfidence:  clampUnit(answer.CategoryConfidence),
		SeverityConfidence:  clampUnit(answer.SeverityConfidence),
		TreatmentConfidence: clampUnit(answer.TreatmentConfidence),
		SkillConfidence:     clampUnit(answer.SkillConfidence),
	}

	plan := &ticket.QueryPlan{
		Query:          strings.TrimSpace(answer.Query),
		Keywords:       trimAll(answer.Keywords),
		Entities:       trimAll(answer.Entities),
		Classification: cls,
	}
	if plan.Query == "" {
		plan.Query = t.Text()
		plan.Original = true
	} else if !p.faithful(ctx, t.Text(), plan.Query) {
		logging.WithComponent("planner").Info("reformulation discarded by fidelity check", "ticket_id", t.ID)
		plan.Query = t.Text()
		plan.Original = true
	}
	if len(plan.Keywords) == 0 {
		plan.Keywords = extractKeywords(t.Text())
	}

	p.decidePath(plan)
	return plan
}

// faithful checks that the reformulation stays semantically close to the
// original ticket text. Any embedding failure counts as unfaithful so the
// pipeline keeps the customer's own wording.
func (p *QueryPlanner) faithful(ctx context.Context, original, query string) bool {
	if p.embedder == nil {
		return false
	}
	vecs, err := p.embedder.EmbedBatch(ctx, []string{original, query})
	if err != nil || len(vecs) != 2 {
		return false
	}
	sim := vector.CosineSimilarity(vecs[0], vecs[1])
	return float64(sim) >= p.cfg.Thresholds.ReformulationFidelity
}

// decidePath applies the routing rules: critical severity escalates
// unconditionally, confidence below the give-up threshold escalates, high
// confidence proceeds plainly, everything in between proceeds with
// escalation pre-armed.
func (p *QueryPlanner) decidePath(plan *ticket.QueryPlan) {
	overall := plan.Classification.Overall()
	switch {
	case plan.Classification.Severity == ticket.SeverityCritical:
		plan.Path = ticket.PathEscalation
	case overall < p.cfg.Thresholds.GiveUp:
		plan.Path = ticket.PathEscalation
	case overall >= p.cfg.Thresholds.Proceed:
		plan.Path = ticket.PathKBRetrieval
	default:
		plan.Path = ticket.PathKBRetrieval
		plan.EscalationPreArmed = true
	}
}

// heuristic planning: the original text verbatim, frequency-ranked keywords,
// regex-extracted entities, and a keyword-table classification with fixed
// moderate confidences.
func (p *QueryPlanner) heuristic(t *ticket.Ticket) *ticket.QueryPlan {
	text := t.Text()
	plan := &ticket.QueryPlan{
		Query:          text,
		Original:       true,
		Keywords:       extractKeywords(text),
		Entities:       extractEntities(text),
		Classification: classifyHeuristic(text),
	}
	p.decidePath(plan)
	return plan
}

var categoryMarkers = map[ticket.Category][]string{
	ticket.CategoryAuthentication: {"log in", "login", "password", "sign in", "signin", "2fa", "mfa", "authentication", "session expired"},
	ticket.CategoryBilling:        {"invoice", "billing", "charge", "payment", "refund", "subscription", "credit card"},
	ticket.CategoryAccount:        {"account", "profile", "email address", "username", "delete my"},
	ticket.CategoryNetwork:        {"vpn", "network", "connection", "wifi", "dns", "timeout", "latency"},
	ticket.CategoryData:           {"export", "import", "data loss", "corrupt", "missing records", "backup", "restore"},
	ticket.CategoryTechnical:      {"crash", "error", "bug", "exception", "stack trace", "upgrade", "install"},
}

func classifyHeuristic(text string) ticket.Classification {
	lower := strings.ToLower(text)

	category := ticket.CategoryGeneral
	categoryConfidence := 0.35
	best := 0
	for cat, markers := range categoryMarkers {
		n := 0
		for _, m := range markers {
			if strings.Contains(lower, m) {
				n++
			}
		}
		if n > best {
			best = n
			category = cat
			categoryConfidence = 0.7
		}
	}

	severity := ticket.SeverityMedium
	severityConfidence := 0.6
	switch {
	case containsAny(lower, []string{"data loss", "security breach", "everyone is locked out", "complete outage"}):
		severity = ticket.SeverityCritical
		severityConfidence = 0.8
	case containsAny(lower, urgencyMarkers):
		severity = ticket.SeverityHigh
	case len(lower) < 60:
		severity = ticket.SeverityLow
	}

	treatment := ticket.TreatmentSelfService
	if severity == ticket.SeverityHigh || severity == ticket.SeverityCritical {
		treatment = ticket.TreatmentSpecialist
	} else if category == ticket.CategoryTechnical || category == ticket.CategoryData {
		treatment = ticket.TreatmentGuided
	}

	return ticket.Classification{
		Category:            category,
		Severity:            severity,
		Treatment:           treatment,
		Skills:              []string{string(category)},
		CategoryConfidence:  categoryConfidence,
		SeverityConfidence:  severityConfidence,
		TreatmentConfidence: 0.6,
		SkillConfidence:     0.5,
	}
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "has": true, "was": true,
	"are": true, "but": true, "not": true, "you": true, "your": true,
	"can": true, "cannot": true, "when": true, "what": true, "how": true,
	"after": true, "before": true, "into": true, "does": true, "did": true,
	"its": true, "it's": true, "our": true, "all": true, "any": true,
	"been": true, "will": true, "would": true, "there": true, "them": true,
}

var wordRe = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9'_-]{2,}`)

// extractKeywords returns up to 8 frequency-ranked non-stopword terms, in a
// deterministic order.
func extractKeywords(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 8 {
		order = order[:8]
	}
	return order
}

var entityRes = []*regexp.Regexp{
	// issue/error codes like AUTH-503
	regexp.MustCompile(`\b[A-Z]{2,}-\d+\b`),
	// hex codes
	regexp.MustCompile(`\b0x[0-9A-Fa-f]{2,}\b`),
	// ERR-style codes
	regexp.MustCompile(`\bERR[A-Z_]*\d+\b`),
	// version strings
	regexp.MustCompile(`\bv?\d+\.\d+(?:\.\d+)?\b`),
	// HTTP status mentions
	regexp.MustCompile(`\bHTTP/?\s?[1-5]\d{2}\b`),
}

func extractEntities(text string) []string {
	seen := make(map[string]bool)
	var entities []string
	for _, re := range entityRes {
		for _, m := range re.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				entities = append(entities, m)
			}
		}
	}
	return entities
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
