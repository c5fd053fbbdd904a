// Package consensus applies a voting rule to reviewer votes and aggregates
// them into one evaluation result.
package consensus

import (
	"github.com/harrison/tetrad/internal/models"
)

// Rule is one consensus policy over a set of votes.
type Rule interface {
	// Name is the config-facing rule name.
	Name() string
	// MinRequired is the vote quorum for the rule to act.
	MinRequired() int
	// Evaluate maps votes to a decision given the pass threshold.
	Evaluate(votes map[string]models.ModelVote, minScore int) models.Decision
	// IsConsensusAchieved reports whether the vote set constitutes
	// consensus under this rule.
	IsConsensusAchieved(votes map[string]models.ModelVote, minScore int) bool
}

// RuleForName returns the rule for a config name, defaulting to strong.
func RuleForName(name string) Rule {
	switch name {
	case "golden":
		return GoldenRule{}
	case "weak":
		return WeakRule{}
	default:
		return StrongRule{}
	}
}

func countVotes(votes map[string]models.ModelVote) (pass, warn, fail int) {
	for _, v := range votes {
		switch v.Vote {
		case models.VotePass:
			pass++
		case models.VoteFail:
			fail++
		default:
			warn++
		}
	}
	return
}

func meanScore(votes map[string]models.ModelVote) int {
	if len(votes) == 0 {
		return 0
	}
	total := 0
	for _, v := range votes {
		total += v.Score
	}
	return total / len(votes)
}

// GoldenRule demands unanimity: every vote Pass and every score at or above
// the threshold. Consensus exists only on Pass.
type GoldenRule struct{}

func (GoldenRule) Name() string     { return "golden" }
func (GoldenRule) MinRequired() int { return 3 }

func (GoldenRule) Evaluate(votes map[string]models.ModelVote, minScore int) models.Decision {
	if len(votes) < 3 {
		return models.DecisionRevise
	}

	allPass := true
	anyFail := false
	for _, v := range votes {
		if v.Vote != models.VotePass || v.Score < minScore {
			allPass = false
		}
		if v.Vote == models.VoteFail {
			anyFail = true
		}
	}

	if allPass {
		return models.DecisionPass
	}
	if anyFail {
		return models.DecisionBlock
	}
	return models.DecisionRevise
}

func (r GoldenRule) IsConsensusAchieved(votes map[string]models.ModelVote, minScore int) bool {
	return r.Evaluate(votes, minScore) == models.DecisionPass
}

// StrongRule requires 3/3 agreement in either direction: all Pass with a
// mean score at threshold, or all Fail.
type StrongRule struct{}

func (StrongRule) Name() string     { return "strong" }
func (StrongRule) MinRequired() int { return 3 }

func (StrongRule) Evaluate(votes map[string]models.ModelVote, minScore int) models.Decision {
	if len(votes) < 3 {
		return models.DecisionRevise
	}

	pass, _, fail := countVotes(votes)
	if pass == len(votes) && meanScore(votes) >= minScore {
		return models.DecisionPass
	}
	if fail == len(votes) {
		return models.DecisionBlock
	}
	return models.DecisionRevise
}

func (r StrongRule) IsConsensusAchieved(votes map[string]models.ModelVote, minScore int) bool {
	d := r.Evaluate(votes, minScore)
	return d == models.DecisionPass || d == models.DecisionBlock
}

// WeakRule accepts a 2+ majority. Pass requires the mean over Pass votes
// only to reach the threshold.
type WeakRule struct{}

func (WeakRule) Name() string     { return "weak" }
func (WeakRule) MinRequired() int { return 2 }

func (WeakRule) Evaluate(votes map[string]models.ModelVote, minScore int) models.Decision {
	if len(votes) == 0 {
		return models.DecisionBlock
	}

	pass, _, fail := countVotes(votes)

	if pass >= 2 {
		total, count := 0, 0
		for _, v := range votes {
			if v.Vote == models.VotePass {
				total += v.Score
				count++
			}
		}
		if count > 0 && total/count >= minScore {
			return models.DecisionPass
		}
	}

	if fail >= 2 {
		return models.DecisionBlock
	}
	return models.DecisionRevise
}

func (r WeakRule) IsConsensusAchieved(votes map[string]models.ModelVote, minScore int) bool {
	d := r.Evaluate(votes, minScore)
	return d == models.DecisionPass || d == models.DecisionBlock
}
