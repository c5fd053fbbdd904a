package models

import (
	"strings"
	"time"
)

// Vote is a single reviewer verdict.
type Vote string

const (
	VotePass Vote = "PASS"
	VoteWarn Vote = "WARN"
	VoteFail Vote = "FAIL"
)

// ParseVote normalizes a reviewer-supplied vote string. Unknown values
// default to WARN so a sloppy reviewer never hard-fails an evaluation.
func ParseVote(s string) Vote {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return VotePass
	case "FAIL":
		return VoteFail
	default:
		return VoteWarn
	}
}

// ModelVote is one reviewer's normalized output. Issues and suggestions at
// the same index are considered paired when both are present.
type ModelVote struct {
	Reviewer    string   `json:"reviewer"`
	Vote        Vote     `json:"vote"`
	Score       int      `json:"score"`
	Reasoning   string   `json:"reasoning"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Severity ranks findings. Higher values sort first.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	default:
		return "Info"
	}
}

// Finding is a single consolidated issue attached to a result.
type Finding struct {
	Severity          Severity `json:"severity"`
	Category          string   `json:"category"`
	Issue             string   `json:"issue"`
	Lines             []int    `json:"lines,omitempty"`
	Suggestion        string   `json:"suggestion,omitempty"`
	Reviewers         string   `json:"reviewers"`
	ConsensusStrength string   `json:"consensus_strength"`
}

// NewFinding creates a finding with the given severity, category, and issue.
func NewFinding(severity Severity, category, issue string) Finding {
	return Finding{
		Severity:          severity,
		Category:          category,
		Issue:             issue,
		ConsensusStrength: "weak",
	}
}

// Decision is the consensus outcome of one evaluation.
type Decision string

const (
	DecisionPass   Decision = "PASS"
	DecisionRevise Decision = "REVISE"
	DecisionBlock  Decision = "BLOCK"
)

// EvaluationResult is the consolidated outcome of one evaluation round.
type EvaluationResult struct {
	RequestID         string               `json:"request_id"`
	Decision          Decision             `json:"decision"`
	Score             int                  `json:"score"`
	ConsensusAchieved bool                 `json:"consensus_achieved"`
	Votes             map[string]ModelVote `json:"votes"`
	Findings          []Finding            `json:"findings"`
	Feedback          string               `json:"feedback"`
	Timestamp         time.Time            `json:"timestamp"`
}

// PatternType classifies a persisted pattern by its success ratio.
type PatternType string

const (
	PatternAnti      PatternType = "anti_pattern"
	PatternGood      PatternType = "good_pattern"
	PatternAmbiguous PatternType = "ambiguous"
)

// ParsePatternType maps a stored string back to a PatternType.
func ParsePatternType(s string) PatternType {
	switch strings.ToLower(s) {
	case "anti_pattern", "antipattern":
		return PatternAnti
	case "good_pattern", "goodpattern":
		return PatternGood
	default:
		return PatternAmbiguous
	}
}

// TypeForRatio applies the 0.8 classification rule to counts.
func TypeForRatio(success, failure int) PatternType {
	total := success + failure
	if total == 0 {
		return PatternAmbiguous
	}
	if float64(success)/float64(total) > 0.8 {
		return PatternGood
	}
	if float64(failure)/float64(total) > 0.8 {
		return PatternAnti
	}
	return PatternAmbiguous
}

// Pattern is a persistent belief about a (code-shape, issue-category) pair.
type Pattern struct {
	ID            int64       `json:"id"`
	Type          PatternType `json:"pattern_type"`
	CodeSignature string      `json:"code_signature"`
	Language      string      `json:"language"`
	IssueCategory string      `json:"issue_category"`
	Description   string      `json:"description"`
	Solution      string      `json:"solution,omitempty"`
	SuccessCount  int         `json:"success_count"`
	FailureCount  int         `json:"failure_count"`
	Confidence    float64     `json:"confidence"`
	LastSeen      time.Time   `json:"last_seen"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TotalCount is the evidence size behind a pattern.
func (p *Pattern) TotalCount() int {
	return p.SuccessCount + p.FailureCount
}

// Trajectory records one evaluation event for rate statistics.
type Trajectory struct {
	ID               int64     `json:"id"`
	PatternID        int64     `json:"pattern_id,omitempty"`
	RequestID        string    `json:"request_id"`
	CodeHash         string    `json:"code_hash"`
	InitialScore     int       `json:"initial_score"`
	FinalScore       int       `json:"final_score"`
	LoopsToConsensus int       `json:"loops_to_consensus"`
	WasSuccessful    bool      `json:"was_successful"`
	Timestamp        time.Time `json:"timestamp"`
}

// PatternMatch pairs a retrieved pattern with its query relevance.
type PatternMatch struct {
	Pattern   Pattern `json:"pattern"`
	Relevance float64 `json:"relevance"`
}
