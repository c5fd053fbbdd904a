package reasoning

import (
	"sort"

	"github.com/harrison/tetrad/internal/models"
	"github.com/harrison/tetrad/internal/pattern"
)

// Relevance assigned to each retrieval channel. An exact signature match is
// authoritative; a keyword match is only suggestive.
const (
	signatureRelevance = 1.0
	keywordRelevance   = 0.7
)

// analysisContent narrows a request to the text worth pattern analysis.
// Plans arrive as markdown whose prose drowns the signature, so only
// their fenced code blocks are analyzed.
func analysisContent(request *models.EvaluationRequest) string {
	if request.Kind == models.KindPlan {
		return pattern.AnalyzableContent(request.Content)
	}
	return request.Content
}

// Retrieve returns the stored patterns most relevant to a request, best
// first, capped at max_patterns_per_query. Retrieval is observational: it
// never mutates the bank.
func (b *Bank) Retrieve(request *models.EvaluationRequest) ([]models.PatternMatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	content := analysisContent(request)
	signature := pattern.Signature(content)
	seen := make(map[int64]bool)
	var matches []models.PatternMatch

	rows, err := b.db.Query(
		`SELECT `+patternColumns+` FROM patterns WHERE code_signature = ?`,
		signature,
	)
	if err != nil {
		return nil, models.ReasoningError("query signature matches", err)
	}
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			rows.Close()
			return nil, models.ReasoningError("scan pattern", err)
		}
		seen[p.ID] = true
		matches = append(matches, models.PatternMatch{Pattern: p, Relevance: signatureRelevance})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, models.ReasoningError("iterate signature matches", err)
	}
	rows.Close()

	for _, keyword := range pattern.ExtractKeywords(content) {
		like := "%" + keyword + "%"
		rows, err := b.db.Query(
			`SELECT `+patternColumns+` FROM patterns
			WHERE (language = ? OR language = 'any')
			AND (issue_category LIKE ? OR description LIKE ?)
			ORDER BY confidence DESC LIMIT 10`,
			request.Language, like, like,
		)
		if err != nil {
			return nil, models.ReasoningError("query keyword matches", err)
		}
		for rows.Next() {
			p, err := scanPattern(rows)
			if err != nil {
				rows.Close()
				return nil, models.ReasoningError("scan pattern", err)
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			matches = append(matches, models.PatternMatch{Pattern: p, Relevance: keywordRelevance})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, models.ReasoningError("iterate keyword matches", err)
		}
		rows.Close()
	}

	// Rank by relevance weighted by how much we trust the pattern.
	sort.SliceStable(matches, func(i, j int) bool {
		wi := matches[i].Relevance * matches[i].Pattern.Confidence
		wj := matches[j].Relevance * matches[j].Pattern.Confidence
		return wi > wj
	})

	if len(matches) > b.cfg.MaxPatternsPerQuery {
		matches = matches[:b.cfg.MaxPatternsPerQuery]
	}

	b.log.Debug("retrieved %d pattern(s) for request %s", len(matches), request.ID)
	return matches, nil
}
