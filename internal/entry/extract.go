package entry

import "strings"

// Line-pattern keywords for trace mining. A line counts when it contains any
// keyword for its list, case-insensitively.
var (
	insightKeywords     = []string{"insight:", "key point:", "important:", "realize:", "understand:"}
	decisionKeywords    = []string{"decide:", "choose:", "will:", "should:", "need to:"}
	alternativeKeywords = []string{"alternatively:", "another way:", "could also:", "option:", "approach:"}
)

// Caps on extracted lists.
const (
	maxInsights     = 5
	maxDecisions    = 5
	maxAlternatives = 3
)

// ExtractInsights returns up to 5 insight lines from a raw thinking trace.
func ExtractInsights(trace string) []string {
	return extractLines(trace, insightKeywords, maxInsights)
}

// ExtractDecisions returns up to 5 decision-point lines from a raw thinking trace.
func ExtractDecisions(trace string) []string {
	return extractLines(trace, decisionKeywords, maxDecisions)
}

// ExtractAlternatives returns up to 3 alternative-approach lines from a raw
// thinking trace.
func ExtractAlternatives(trace string) []string {
	return extractLines(trace, alternativeKeywords, maxAlternatives)
}

func extractLines(text string, keywords []string, limit int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, trimmed)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}
