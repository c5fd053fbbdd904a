package reasoning

import (
	"database/sql"

	"github.com/harrison/tetrad/internal/models"
)

// LanguageStats aggregates pattern quality per language.
type LanguageStats struct {
	Language      string  `json:"language"`
	PatternCount  int     `json:"pattern_count"`
	SuccessRate   float64 `json:"success_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// KnowledgeReport is the distilled view of everything the bank has learned.
type KnowledgeReport struct {
	TotalPatterns         int              `json:"total_patterns"`
	TotalTrajectories     int              `json:"total_trajectories"`
	TopAntiPatterns       []models.Pattern `json:"top_anti_patterns"`
	TopGoodPatterns       []models.Pattern `json:"top_good_patterns"`
	AntiPatternCategories map[string]int   `json:"anti_pattern_categories"`
	LanguageStats         []LanguageStats  `json:"language_stats"`
	AvgLoopsToConsensus   float64          `json:"avg_loops_to_consensus"`
}

// Distill builds a knowledge report from the current bank contents.
func (b *Bank) Distill() (*KnowledgeReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	report := &KnowledgeReport{
		AntiPatternCategories: make(map[string]int),
	}

	var err error
	if report.TotalTrajectories, err = b.countTrajectoriesLocked(); err != nil {
		return nil, err
	}
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM patterns`).Scan(&report.TotalPatterns); err != nil {
		return nil, models.ReasoningError("count patterns", err)
	}

	if report.TopAntiPatterns, err = b.topPatternsLocked(models.PatternAnti); err != nil {
		return nil, err
	}
	if report.TopGoodPatterns, err = b.topPatternsLocked(models.PatternGood); err != nil {
		return nil, err
	}

	rows, err := b.db.Query(`SELECT issue_category, COUNT(*) FROM patterns
		WHERE pattern_type = 'anti_pattern' GROUP BY issue_category`)
	if err != nil {
		return nil, models.ReasoningError("query anti-pattern categories", err)
	}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			rows.Close()
			return nil, models.ReasoningError("scan category row", err)
		}
		report.AntiPatternCategories[category] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, models.ReasoningError("iterate categories", err)
	}
	rows.Close()

	rows, err = b.db.Query(`SELECT language, COUNT(*),
		AVG(CASE WHEN pattern_type = 'good_pattern' THEN 1.0 ELSE 0.0 END),
		AVG(confidence * 100)
		FROM patterns GROUP BY language ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, models.ReasoningError("query language stats", err)
	}
	for rows.Next() {
		var ls LanguageStats
		var successRate, avgConfidence sql.NullFloat64
		if err := rows.Scan(&ls.Language, &ls.PatternCount, &successRate, &avgConfidence); err != nil {
			rows.Close()
			return nil, models.ReasoningError("scan language row", err)
		}
		if successRate.Valid {
			ls.SuccessRate = successRate.Float64
		}
		if avgConfidence.Valid {
			ls.AvgConfidence = avgConfidence.Float64
		}
		report.LanguageStats = append(report.LanguageStats, ls)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, models.ReasoningError("iterate language stats", err)
	}
	rows.Close()

	var avgLoops sql.NullFloat64
	err = b.db.QueryRow(`SELECT AVG(loops_to_consensus) FROM trajectories WHERE was_successful = 1`).Scan(&avgLoops)
	if err != nil {
		return nil, models.ReasoningError("query average loops", err)
	}
	if avgLoops.Valid {
		report.AvgLoopsToConsensus = avgLoops.Float64
	}

	return report, nil
}

// topPatternsLocked returns the ten most-evidenced patterns of one type,
// confidence as tiebreak.
func (b *Bank) topPatternsLocked(patternType models.PatternType) ([]models.Pattern, error) {
	rows, err := b.db.Query(`SELECT `+patternColumns+` FROM patterns
		WHERE pattern_type = ?
		ORDER BY (success_count + failure_count) DESC, confidence DESC LIMIT 10`,
		string(patternType))
	if err != nil {
		return nil, models.ReasoningError("query top patterns", err)
	}
	defer rows.Close()

	var patterns []models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, models.ReasoningError("scan pattern", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.ReasoningError("iterate top patterns", err)
	}
	return patterns, nil
}
