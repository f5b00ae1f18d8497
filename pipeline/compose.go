package pipeline

import (
	"fmt"
	"strings"

	"github.com/triagehq/triage/ticket"
)

// ComposeResponse renders the customer-facing resolution message. Pure
// formatting: no state, no external calls, no escalation logic.
func ComposeResponse(t *ticket.Ticket, solution string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nThank you for reporting %q. Based on our knowledge base, the following should resolve your issue:\n\n", strings.TrimSpace(t.Subject))
	b.WriteString(strings.TrimSpace(solution))
	b.WriteString("\n\nIf this does not solve your problem, reply to this message and we will take another look.")
	return b.String()
}

// ComposeRejection explains why a ticket was not accepted, listing the
// specific gaps so the customer can resubmit.
func ComposeRejection(t *ticket.Ticket, reasons []string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\nWe could not process your request because it is missing information we need:\n")
	for _, r := range reasons {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	b.WriteString("\nPlease update the ticket with these details and submit it again.")
	return b.String()
}

// ComposeEscalation acknowledges the handoff without exposing internal
// diagnostics.
func ComposeEscalation(t *ticket.Ticket) string {
	return fmt.Sprintf("Hello,\n\nYour request %q has been forwarded to one of our support specialists. You will hear from us shortly.", strings.TrimSpace(t.Subject))
}
