package ticket

// Weights for combining per-dimension classification confidences into one
// overall value. No single model-reported number may stand in for the whole
// decision, so every dimension carries its own confidence and the blend is
// fixed here.
const (
	CategoryConfidenceWeight  = 0.30
	SeverityConfidenceWeight  = 0.30
	TreatmentConfidenceWeight = 0.20
	SkillConfidenceWeight     = 0.20
)

// Classification is the planner's categorisation of a ticket with
// per-dimension confidence scores.
type Classification struct {
	Category  Category  `json:"category"`
	Severity  Severity  `json:"severity"`
	Treatment Treatment `json:"treatment"`
	Skills    []string  `json:"skills,omitempty"`

	CategoryConfidence  float64 `json:"category_confidence"`
	SeverityConfidence  float64 `json:"severity_confidence"`
	TreatmentConfidence float64 `json:"treatment_confidence"`
	SkillConfidence     float64 `json:"skill_confidence"`
}

// Overall blends the per-dimension confidences using the fixed weights.
func (c Classification) Overall() float64 {
	return c.CategoryConfidence*CategoryConfidenceWeight +
		c.SeverityConfidence*SeverityConfidenceWeight +
		c.TreatmentConfidence*TreatmentConfidenceWeight +
		c.SkillConfidence*SkillConfidenceWeight
}

// ValidCategory reports whether v is a member of the closed taxonomy.
func ValidCategory(v Category) bool {
	for _, c := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

// NormalizeCategory maps unknown values onto CategoryGeneral so a sloppy
// model answer can never widen the taxonomy.
func NormalizeCategory(v Category) Category {
	if ValidCategory(v) {
		return v
	}
	return CategoryGeneral
}

// NormalizeSeverity maps unknown values onto SeverityMedium.
func NormalizeSeverity(v Severity) Severity {
	switch v {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return v
	}
	return SeverityMedium
}

// NormalizeTreatment maps unknown values onto TreatmentGuided.
func NormalizeTreatment(v Treatment) Treatment {
	switch v {
	case TreatmentSelfService, TreatmentGuided, TreatmentSpecialist:
		return v
	}
	return TreatmentGuided
}
