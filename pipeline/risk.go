package pipeline

import (
	"regexp"
	"strings"
)

// Risk reason codes recorded on escalation.
const (
	ReasonSensitiveData   = "sensitive_data_detected"
	ReasonLowConfidence   = "low_confidence"
	ReasonNegativeTone    = "negative_sentiment"
	ReasonCriticalTicket  = "critical_severity"
	ReasonPlannerGiveUp   = "low_classification_confidence"
	ReasonAttemptsExhaust = "max_attempts_exhausted"
)

// Sensitive-data detection is pattern-based on purpose: a reviewer must be
// able to audit exactly what triggers it, which rules out model-based
// detection here.
var sensitivePatterns = map[string]*regexp.Regexp{
	"email":         regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	"phone":         regexp.MustCompile(`\b\+?\d{1,3}[-. ]?\(?\d{2,4}\)?[-. ]?\d{3,4}[-. ]?\d{4}\b`),
	"payment_card":  regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`),
	"government_id": regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// DetectSensitiveData returns the kinds of personal data found in text, in
// deterministic order.
func DetectSensitiveData(text string) []string {
	var kinds []string
	for _, kind := range []string{"email", "phone", "payment_card", "government_id"} {
		if sensitivePatterns[kind].MatchString(text) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

var negativeMarkers = []string{
	"angry", "furious", "terrible", "awful", "unacceptable", "worst",
	"frustrated", "frustrating", "fed up", "ridiculous", "useless",
	"cancel my account", "switching to a competitor",
}

// NegativeSentiment reports whether the text carries hostile or fed-up
// language. Lexical on purpose, same auditability argument as above.
func NegativeSentiment(text string) bool {
	return containsAny(strings.ToLower(text), negativeMarkers)
}
