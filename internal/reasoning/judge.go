package reasoning

import (
	"fmt"

	"github.com/harrison/tetrad/internal/models"
	"github.com/harrison/tetrad/internal/pattern"
)

// JudgeOutcome summarizes what one judged evaluation changed in the bank.
type JudgeOutcome struct {
	WasSuccessful      bool `json:"was_successful"`
	PatternsUpdated    int  `json:"patterns_updated"`
	NewPatternsCreated int  `json:"new_patterns_created"`
}

// Judge records an evaluation outcome: one trajectory row plus one pattern
// reinforcement (or creation) per finding. An evaluation counts as
// successful when consensus was reached within maxLoops rounds.
func (b *Bank) Judge(request *models.EvaluationRequest, result *models.EvaluationResult, loops, maxLoops int) (*JudgeOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasSuccessful := result.ConsensusAchieved && loops <= maxLoops
	signature := pattern.Signature(analysisContent(request))
	now := nowString()

	initialScore := result.Score
	for _, vote := range result.Votes {
		if vote.Score < initialScore {
			initialScore = vote.Score
		}
	}

	successInt := 0
	if wasSuccessful {
		successInt = 1
	}
	_, err := b.db.Exec(
		`INSERT INTO trajectories
		(pattern_id, request_id, code_hash, initial_score, final_score, loops_to_consensus, was_successful, timestamp)
		VALUES (NULL, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID, signature, initialScore, result.Score, loops, successInt, now,
	)
	if err != nil {
		return nil, models.ReasoningError("insert trajectory", err)
	}

	outcome := &JudgeOutcome{WasSuccessful: wasSuccessful}

	successDelta, failureDelta := 0, 1
	if wasSuccessful {
		successDelta, failureDelta = 1, 0
	}

	for _, finding := range result.Findings {
		// Reinforce in place; the confidence expression sees pre-update
		// counts, so the +1 accounts for this observation.
		res, err := b.db.Exec(
			`UPDATE patterns SET
			success_count = success_count + ?,
			failure_count = failure_count + ?,
			last_seen = ?,
			confidence = CAST(success_count + ? AS REAL) / (success_count + failure_count + 1)
			WHERE code_signature = ? AND issue_category = ?`,
			successDelta, failureDelta, now, successDelta, signature, finding.Category,
		)
		if err != nil {
			return nil, models.ReasoningError("update pattern", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, models.ReasoningError("rows affected", err)
		}
		if affected > 0 {
			outcome.PatternsUpdated++
			continue
		}

		patternType := models.PatternAnti
		if wasSuccessful {
			patternType = models.PatternAmbiguous
		}
		_, err = b.db.Exec(
			`INSERT INTO patterns
			(pattern_type, code_signature, language, issue_category, description, solution,
			 success_count, failure_count, confidence, last_seen, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(patternType), signature, request.Language, finding.Category,
			finding.Issue, finding.Suggestion,
			successDelta, failureDelta, 0.5, now, now,
		)
		if err != nil {
			return nil, models.ReasoningError("insert pattern", err)
		}
		outcome.NewPatternsCreated++
	}

	// A clean pass with no findings is itself worth remembering.
	if len(result.Findings) == 0 && wasSuccessful {
		created, err := b.recordCleanPassLocked(signature, request.Language, now)
		if err != nil {
			return nil, err
		}
		if created {
			outcome.NewPatternsCreated++
		} else {
			outcome.PatternsUpdated++
		}
	}

	b.log.Debug("judged request %s: successful=%v updated=%d created=%d",
		request.ID, outcome.WasSuccessful, outcome.PatternsUpdated, outcome.NewPatternsCreated)
	return outcome, nil
}

func (b *Bank) recordCleanPassLocked(signature, language, now string) (created bool, err error) {
	res, err := b.db.Exec(
		`UPDATE patterns SET
		success_count = success_count + 1,
		last_seen = ?,
		confidence = CAST(success_count + 1 AS REAL) / (success_count + failure_count + 1)
		WHERE code_signature = ? AND issue_category = 'success'`,
		now, signature,
	)
	if err != nil {
		return false, models.ReasoningError("update clean pass", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, models.ReasoningError("rows affected", err)
	}
	if affected > 0 {
		return false, nil
	}

	_, err = b.db.Exec(
		`INSERT INTO patterns
		(pattern_type, code_signature, language, issue_category, description, solution,
		 success_count, failure_count, confidence, last_seen, created_at)
		VALUES (?, ?, ?, 'success', ?, '', 1, 0, 1.0, ?, ?)`,
		string(models.PatternGood), signature, language,
		fmt.Sprintf("Code approved without issues (%s)", language), now, now,
	)
	if err != nil {
		return false, models.ReasoningError("insert clean pass", err)
	}
	return true, nil
}
