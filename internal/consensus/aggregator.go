package consensus

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrison/tetrad/internal/models"
)

// Aggregate applies the rule to the votes and consolidates them into one
// EvaluationResult: aggregate score, grouped findings, and markdown
// feedback.
func Aggregate(votes map[string]models.ModelVote, rule Rule, minScore int, requestID string) *models.EvaluationResult {
	decision := rule.Evaluate(votes, minScore)

	return &models.EvaluationResult{
		RequestID:         requestID,
		Decision:          decision,
		Score:             CalculateScore(votes),
		ConsensusAchieved: rule.IsConsensusAchieved(votes, minScore),
		Votes:             votes,
		Findings:          ExtractFindings(votes),
		Feedback:          ConsolidateFeedback(votes, decision),
		Timestamp:         time.Now().UTC(),
	}
}

// CalculateScore is the integer mean over all vote scores; 0 when empty.
func CalculateScore(votes map[string]models.ModelVote) int {
	if len(votes) == 0 {
		return 0
	}
	total := 0
	for _, v := range votes {
		total += v.Score
	}
	return total / len(votes)
}

// CalculateMinScore is the lowest vote score; 0 when empty.
func CalculateMinScore(votes map[string]models.ModelVote) int {
	min := 0
	first := true
	for _, v := range votes {
		if first || v.Score < min {
			min = v.Score
			first = false
		}
	}
	return min
}

// ExtractFindings groups issue strings across votes by case-insensitive
// trim-equality, infers severity and category per issue, pairs suggestions,
// and sorts by severity descending.
func ExtractFindings(votes map[string]models.ModelVote) []models.Finding {
	type group struct {
		reviewers []string
		severity  models.Severity
	}
	groups := make(map[string]*group)

	for _, reviewer := range sortedReviewers(votes) {
		for _, issue := range votes[reviewer].Issues {
			key := normalizeIssue(issue)
			g, ok := groups[key]
			if !ok {
				g = &group{severity: inferSeverity(issue)}
				groups[key] = g
			}
			g.reviewers = append(g.reviewers, reviewer)
		}
	}

	findings := make([]models.Finding, 0, len(groups))
	for issue, g := range groups {
		strength := "weak"
		if len(g.reviewers) >= 3 {
			strength = "strong"
		} else if len(g.reviewers) == 2 {
			strength = "moderate"
		}

		findings = append(findings, models.Finding{
			Severity:          g.severity,
			Category:          inferCategory(issue),
			Issue:             issue,
			Suggestion:        findSuggestionForIssue(votes, issue),
			Reviewers:         strings.Join(g.reviewers, ", "),
			ConsensusStrength: strength,
		})
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		return findings[i].Issue < findings[j].Issue
	})

	return findings
}

// ShouldBlockImmediately reports whether any finding is Critical, letting
// callers short-circuit retry loops.
func ShouldBlockImmediately(findings []models.Finding) bool {
	for _, f := range findings {
		if f.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// ConsolidateFeedback renders the human-readable markdown summary.
func ConsolidateFeedback(votes map[string]models.ModelVote, decision models.Decision) string {
	var sb strings.Builder

	switch decision {
	case models.DecisionPass:
		sb.WriteString("## Evaluation Approved")
	case models.DecisionBlock:
		sb.WriteString("## Evaluation Blocked")
	default:
		sb.WriteString("## Revision Required")
	}
	sb.WriteString("\n\n")

	pass, warn, fail := countVotes(votes)
	fmt.Fprintf(&sb, "**Votes:** %d PASS | %d WARN | %d FAIL\n\n", pass, warn, fail)

	sb.WriteString("### Reviewer Feedback\n\n")
	for _, reviewer := range sortedReviewers(votes) {
		vote := votes[reviewer]

		icon := "⚠"
		switch vote.Vote {
		case models.VotePass:
			icon = "✓"
		case models.VoteFail:
			icon = "✗"
		}

		fmt.Fprintf(&sb, "**%s %s** (score: %d)\n", icon, reviewer, vote.Score)
		if vote.Reasoning != "" {
			fmt.Fprintf(&sb, "> %s\n", vote.Reasoning)
		}
		if len(vote.Issues) > 0 {
			sb.WriteString("\nIssues:\n")
			for _, issue := range vote.Issues {
				fmt.Fprintf(&sb, "- %s\n", issue)
			}
		}
		if len(vote.Suggestions) > 0 {
			sb.WriteString("\nSuggestions:\n")
			for _, suggestion := range vote.Suggestions {
				fmt.Fprintf(&sb, "- %s\n", suggestion)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("### Recommended Actions\n\n")
	switch decision {
	case models.DecisionPass:
		sb.WriteString("The submission was approved by all reviewers. You may proceed with the implementation.\n")
	case models.DecisionBlock:
		sb.WriteString("The submission was blocked due to critical problems. Fix ALL issues marked Critical or Error before proceeding.\n")
	default:
		sb.WriteString("The submission needs adjustments before approval. Address the issues above and submit again.\n")
	}

	return sb.String()
}

func sortedReviewers(votes map[string]models.ModelVote) []string {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeIssue(issue string) string {
	return strings.TrimSpace(strings.ToLower(issue))
}

func inferSeverity(issue string) models.Severity {
	lower := strings.ToLower(issue)

	switch {
	case containsAny(lower, "critical", "security", "vulnerability", "injection"):
		return models.SeverityCritical
	case containsAny(lower, "error", "bug", "fail", "crash"):
		return models.SeverityError
	case containsAny(lower, "warning", "warn", "should", "consider"):
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}

func inferCategory(issue string) string {
	lower := strings.ToLower(issue)

	switch {
	case containsAny(lower, "security", "injection", "vulnerability", "password", "credential"):
		return "security"
	case containsAny(lower, "performance", "slow", "memory", "allocation"):
		return "performance"
	case containsAny(lower, "logic", "bug", "incorrect", "wrong"):
		return "logic"
	case containsAny(lower, "style", "convention", "naming", "format"):
		return "style"
	case containsAny(lower, "architecture", "design", "pattern", "structure"):
		return "architecture"
	default:
		return "general"
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// findSuggestionForIssue pairs a suggestion with an issue: same-index match
// from a reviewer who reported it, then any suggestion containing the first
// 20 characters of the issue, then none.
func findSuggestionForIssue(votes map[string]models.ModelVote, issue string) string {
	normalized := normalizeIssue(issue)

	for _, reviewer := range sortedReviewers(votes) {
		vote := votes[reviewer]
		for i, voteIssue := range vote.Issues {
			if normalizeIssue(voteIssue) == normalized && i < len(vote.Suggestions) {
				return vote.Suggestions[i]
			}
		}
	}

	prefix := normalized
	if runes := []rune(normalized); len(runes) > 20 {
		prefix = string(runes[:20])
	}
	for _, reviewer := range sortedReviewers(votes) {
		for _, suggestion := range votes[reviewer].Suggestions {
			if strings.Contains(strings.ToLower(suggestion), prefix) {
				return suggestion
			}
		}
	}

	return ""
}
