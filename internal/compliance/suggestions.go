package compliance

import (
	"strings"

	"AdvisoryDispatch/internal/domain"
	"AdvisoryDispatch/internal/rules"
)

const fallbackSuggestion = "Review the content against the SEBI advertising code before resubmitting"

// suggestionsByCode keeps the rejection surface deterministic: each finding
// maps to a fixed remediation hint rather than generated text.
var suggestionsByCode = map[string]string{
	"SEBI-001":              "Remove guaranteed or assured return language",
	"SEBI-002":              "Remove risk-free claims; investments always carry risk",
	"SEBI-003":              "Remove fixed or indicative return promises",
	"SEBI-010":              "Drop urgency framing; advisory content must not pressure clients",
	"SEBI-011":              "Remove superlative claims or attach verifiable substantiation",
	"SEBI-012":              "Do not imply future returns from past performance",
	"SEBI-020":              "Remove comparative claims or disclose the comparison basis",
	"SEBI-021":              "Keep an educational, professional tone without personal promises",
	codeMissingEUIN:         "Include your EUIN / registration code in the message body",
	codeMissingRiskLanguage: "Add a risk disclosure statement to the content",
	codeSemanticRejection:   "Reframe the content educationally with balanced, disclosed claims",
	codeMissingIdentity:     "State the advisor name or registration code in the message",
	codeContentTooLong:      "Shorten the content below the channel length limit",
	codeMissingLocalized:    "Add the disclaimer phrasing required for the content language",
	codeMissingPastPerf:     "Add the past-performance disclaimer next to any return figures",
	codeMissingSchemeDoc:    "Reference the scheme information document in scheme-specific content",
	"DISC-001":              "Add the market risk disclaimer: " + rules.MarketRiskDisclaimer,
	"DISC-002":              "Add the past-performance disclaimer: " + rules.PastPerformanceDisclaimer,
}

// suggestFor derives remediation hints from the findings, deduplicated and in
// finding order.
func suggestFor(violations []domain.Violation) []string {
	if len(violations) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	var out []string
	for _, v := range violations {
		s, ok := suggestionsByCode[v.Code]
		if !ok {
			s = genericSuggestion(v)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func genericSuggestion(v domain.Violation) string {
	msg := strings.TrimSpace(v.Message)
	if msg == "" {
		return fallbackSuggestion
	}
	return "Resolve: " + msg
}
