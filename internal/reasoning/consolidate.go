package reasoning

import (
	"github.com/harrison/tetrad/internal/models"
)

// ConsolidationReport counts what a maintenance pass changed.
type ConsolidationReport struct {
	MergedPatterns     int `json:"merged_patterns"`
	PrunedPatterns     int `json:"pruned_patterns"`
	ReinforcedPatterns int `json:"reinforced_patterns"`
}

// Consolidate runs bank maintenance: merge duplicates, prune stale
// low-evidence patterns, reinforce well-evidenced ones, then recompute
// confidence and type for every pattern from its counts.
func (b *Bank) Consolidate() (*ConsolidationReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	report := &ConsolidationReport{}

	// Duplicates can only appear via imports that bypassed the unique
	// constraint check; merge evidence into the older row.
	type dupPair struct {
		keep, drop int64
	}
	var pairs []dupPair
	rows, err := b.db.Query(`SELECT p1.id, p2.id FROM patterns p1
		JOIN patterns p2 ON p1.code_signature = p2.code_signature
		AND p1.issue_category = p2.issue_category
		AND p1.id < p2.id`)
	if err != nil {
		return nil, models.ReasoningError("query duplicates", err)
	}
	for rows.Next() {
		var pair dupPair
		if err := rows.Scan(&pair.keep, &pair.drop); err != nil {
			rows.Close()
			return nil, models.ReasoningError("scan duplicate row", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, models.ReasoningError("iterate duplicates", err)
	}
	rows.Close()

	for _, pair := range pairs {
		_, err := b.db.Exec(`UPDATE patterns SET
			success_count = success_count + (SELECT success_count FROM patterns WHERE id = ?),
			failure_count = failure_count + (SELECT failure_count FROM patterns WHERE id = ?)
			WHERE id = ?`,
			pair.drop, pair.drop, pair.keep,
		)
		if err != nil {
			return nil, models.ReasoningError("merge duplicate", err)
		}
		if _, err := b.db.Exec(`DELETE FROM patterns WHERE id = ?`, pair.drop); err != nil {
			return nil, models.ReasoningError("delete duplicate", err)
		}
		report.MergedPatterns++
	}

	// Low-confidence patterns with little evidence expire after 30 days.
	res, err := b.db.Exec(`DELETE FROM patterns
		WHERE confidence < 0.3
		AND (success_count + failure_count) < 3
		AND datetime(created_at) < datetime('now', '-30 days')`)
	if err != nil {
		return nil, models.ReasoningError("prune patterns", err)
	}
	pruned, err := res.RowsAffected()
	if err != nil {
		return nil, models.ReasoningError("rows affected", err)
	}
	report.PrunedPatterns = int(pruned)

	res, err = b.db.Exec(`UPDATE patterns SET confidence = MIN(confidence * 1.05, 1.0)
		WHERE (success_count + failure_count) > 10 AND confidence > 0.7`)
	if err != nil {
		return nil, models.ReasoningError("reinforce patterns", err)
	}
	reinforced, err := res.RowsAffected()
	if err != nil {
		return nil, models.ReasoningError("rows affected", err)
	}
	report.ReinforcedPatterns = int(reinforced)

	patterns, err := b.allPatternsLocked()
	if err != nil {
		return nil, err
	}
	for _, p := range patterns {
		total := p.SuccessCount + p.FailureCount
		confidence := 0.5
		if total > 0 {
			confidence = float64(p.SuccessCount) / float64(total)
		}
		patternType := reclassify(p.SuccessCount, p.FailureCount)
		_, err := b.db.Exec(
			`UPDATE patterns SET confidence = ?, pattern_type = ? WHERE id = ?`,
			confidence, string(patternType), p.ID,
		)
		if err != nil {
			return nil, models.ReasoningError("reclassify pattern", err)
		}
	}

	b.log.Info("consolidated bank: merged=%d pruned=%d reinforced=%d",
		report.MergedPatterns, report.PrunedPatterns, report.ReinforcedPatterns)
	return report, nil
}

// reclassify applies the 0.8 ratio rule. The epsilon keeps zero-count
// patterns ambiguous without a division branch.
func reclassify(success, failure int) models.PatternType {
	total := float64(success+failure) + 0.001
	switch {
	case float64(success)/total > 0.8:
		return models.PatternGood
	case float64(failure)/total > 0.8:
		return models.PatternAnti
	default:
		return models.PatternAmbiguous
	}
}
