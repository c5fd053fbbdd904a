package reviewer

import (
	"strings"
)

// Keyword sets for the text-analysis fallback. Portuguese entries stay in:
// the reviewer CLIs answer in whichever language the upstream model picked,
// and both have been observed in the wild.
var (
	failKeywords = []string{
		"erro crítico", "bug grave", "vulnerabilidade", "falha de segurança",
		"critical error", "security vulnerability",
	}
	warnKeywords = []string{
		"problema", "issue", "considere", "sugestão", "atenção", "melhoria",
		"observação", "overflow", "consider", "suggestion",
	}
	excellentKeywords = []string{"perfeito", "excelente", "perfect", "excellent"}
	goodKeywords      = []string{"bom", "correto", "idiomático", "good", "correct", "idiomatic"}
	minorKeywords     = []string{"menor", "minor"}
)

// AnalyzeText is the keyword-driven classifier used when structured JSON
// extraction fails. It maps sentiment keywords to a vote and a score band,
// lifts issues from bullet lines, and keeps the first 500 characters of the
// text as reasoning.
func AnalyzeText(text string) *Response {
	lower := strings.ToLower(text)

	vote := "PASS"
	if containsAny(lower, failKeywords) {
		vote = "FAIL"
	} else if containsAny(lower, warnKeywords) {
		vote = "WARN"
	}

	var score int
	switch vote {
	case "PASS":
		switch {
		case containsAny(lower, excellentKeywords):
			score = 95
		case containsAny(lower, goodKeywords):
			score = 85
		default:
			score = 80
		}
	case "WARN":
		if containsAny(lower, minorKeywords) {
			score = 70
		} else {
			score = 60
		}
	default:
		score = 35
	}

	return &Response{
		Vote:        vote,
		Score:       score,
		Reasoning:   truncateRunes(text, 500),
		Issues:      extractBulletLines(text, 5),
		Suggestions: extractSuggestionLines(text, 3),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// extractBulletLines lifts up to max issues from lines starting with a
// bullet marker.
func extractBulletLines(text string, max int) []string {
	var issues []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		var issue string
		switch {
		case strings.HasPrefix(trimmed, "- "):
			issue = strings.TrimPrefix(trimmed, "- ")
		case strings.HasPrefix(trimmed, "* "):
			issue = strings.TrimPrefix(trimmed, "* ")
		case strings.HasPrefix(trimmed, "• "):
			issue = strings.TrimPrefix(trimmed, "• ")
		default:
			continue
		}
		issues = append(issues, issue)
		if len(issues) == max {
			break
		}
	}
	return issues
}

// extractSuggestionLines lifts up to max suggestion-flavored lines.
func extractSuggestionLines(text string, max int) []string {
	var suggestions []string
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "sugest") && !strings.Contains(lower, "consider") {
			continue
		}
		suggestions = append(suggestions, strings.TrimSpace(line))
		if len(suggestions) == max {
			break
		}
	}
	return suggestions
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
