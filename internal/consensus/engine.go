package consensus

import (
	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/models"
)

// Engine owns the configured rule and thresholds and turns a vote map into
// an EvaluationResult. The engine never retries; it only reports the
// remaining budget.
type Engine struct {
	rule     Rule
	minScore int
	maxLoops int
}

// NewEngine builds an engine from the consensus config section.
func NewEngine(cfg config.ConsensusConfig) *Engine {
	return &Engine{
		rule:     RuleForName(cfg.DefaultRule),
		minScore: cfg.MinScore,
		maxLoops: cfg.MaxLoops,
	}
}

// Rule exposes the active rule, for status reporting.
func (e *Engine) Rule() Rule { return e.rule }

// MinScore exposes the pass threshold.
func (e *Engine) MinScore() int { return e.minScore }

// MaxLoops exposes the retry budget.
func (e *Engine) MaxLoops() int { return e.maxLoops }

// Evaluate aggregates votes under the engine's rule.
func (e *Engine) Evaluate(votes map[string]models.ModelVote, requestID string) *models.EvaluationResult {
	return Aggregate(votes, e.rule, e.minScore, requestID)
}

// CanRetry reports whether another loop fits the budget.
func (e *Engine) CanRetry(currentLoop int) bool {
	return currentLoop < e.maxLoops
}

// Confidence scores how much to trust a result, in [0,1]:
// 40% pass ratio, 30% score headroom above the threshold, 30% consensus.
func (e *Engine) Confidence(result *models.EvaluationResult) float64 {
	total := len(result.Votes)
	if total == 0 {
		return 0.0
	}

	pass, _, _ := countVotes(result.Votes)
	passRatio := float64(pass) / float64(total)

	scoreFactor := 0.0
	if e.minScore < 100 {
		scoreFactor = float64(result.Score-e.minScore) / float64(100-e.minScore)
		if scoreFactor < 0 {
			scoreFactor = 0
		}
		if scoreFactor > 1 {
			scoreFactor = 1
		}
	} else if result.Score >= e.minScore {
		scoreFactor = 1.0
	}

	consensusFactor := 0.0
	if result.ConsensusAchieved {
		consensusFactor = 1.0
	}

	return 0.4*passRatio + 0.3*scoreFactor + 0.3*consensusFactor
}
