package review

import (
	"fmt"
	"strings"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/format"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
)

var systemTitles = map[connector.System]string{
	connector.SystemMailchimp: "Mailchimp",
	connector.SystemPipedrive: "Pipedrive",
}

// SystemTitle returns the user-facing name of a downstream system.
func SystemTitle(sys connector.System) string {
	if t, ok := systemTitles[sys]; ok {
		return t
	}
	return string(sys)
}

// ActionTitle returns the button label for a review action.
func ActionTitle(a Action) string {
	switch a {
	case ActionMailchimp:
		return "✅ Add to Mailchimp"
	case ActionPipedrive:
		return "✅ Add to Pipedrive"
	case ActionBoth:
		return "✅ Add to Both"
	case ActionSkip:
		return "❌ Skip"
	}
	return string(a)
}

// RenderPrompt formats the decision prompt for one row (Telegram Markdown).
func (p *Prompt) RenderPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 *Contact %d of %d*\n\n", p.RowIndex+1, p.Total)
	fmt.Fprintf(&b, "*Name:* %s\n", format.EscapeV1(p.Record.Name))
	fmt.Fprintf(&b, "*Email:* %s\n", format.EscapeV1(p.Record.Email))
	fmt.Fprintf(&b, "*LinkedIn:* %s", format.EscapeV1(p.Record.LinkedInURL))
	return b.String()
}

// RenderOutcome formats the per-row result shown right after an action.
func RenderOutcome(rec string, step *StepResult) string {
	out := step.Outcome
	switch {
	case len(out.Sent) == 0 && len(out.Failed) == 0:
		return fmt.Sprintf("⏭️ *Skipped:* %s", format.EscapeV1(rec))
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "📊 *Results for %s:*\n\n", format.EscapeV1(rec))
		for _, sys := range out.Sent {
			fmt.Fprintf(&b, "*%s:* ✅ Added\n", SystemTitle(sys))
		}
		for _, sys := range out.Failed {
			fmt.Fprintf(&b, "*%s:* ❌ Failed\n", SystemTitle(sys))
		}
		return strings.TrimRight(b.String(), "\n")
	}
}

// RenderSummary formats the final aggregate report for a completed session.
func (s *Summary) RenderSummary() string {
	var b strings.Builder
	b.WriteString("🎉 *All contacts processed!*\n\n")
	fmt.Fprintf(&b, "Reviewed: %d\n", s.Total)
	fmt.Fprintf(&b, "Sent: %d\n", s.Sent)
	fmt.Fprintf(&b, "Partial failures: %d\n", s.Partial)
	fmt.Fprintf(&b, "Skipped: %d", s.Skipped)
	if s.ParseSkipped > 0 {
		fmt.Fprintf(&b, "\nDropped at parse: %d", s.ParseSkipped)
	}

	// Per-system tallies in dispatch order.
	for _, sys := range []connector.System{connector.SystemMailchimp, connector.SystemPipedrive} {
		if n := s.SentBy[sys]; n > 0 {
			fmt.Fprintf(&b, "\n%s: %d", SystemTitle(sys), n)
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n\n⚠️ *Failed submissions:*")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "\n• row %d (%s), %s: %s",
				f.RowIndex+1,
				format.EscapeV1(f.Name),
				SystemTitle(f.System),
				format.EscapeV1(f.Reason),
			)
		}
	}

	b.WriteString("\n\nUpload another CSV file when you're ready.")
	return b.String()
}
