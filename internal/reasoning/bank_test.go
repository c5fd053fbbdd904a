package reasoning

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

func newTestBank(t *testing.T) *Bank {
	t.Helper()

	cfg := config.ReasoningConfig{
		Enabled:               true,
		DBPath:                filepath.Join(t.TempDir(), "bank.db"),
		MaxPatternsPerQuery:   10,
		ConsolidationInterval: 100,
	}
	bank, err := NewBank(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { bank.Close() })
	return bank
}

func blockedResult(requestID string) *models.EvaluationResult {
	return &models.EvaluationResult{
		RequestID:         requestID,
		Decision:          models.DecisionBlock,
		Score:             30,
		ConsensusAchieved: false,
		Votes: map[string]models.ModelVote{
			"Codex": {Reviewer: "Codex", Vote: models.VoteFail, Score: 20},
			"Qwen":  {Reviewer: "Qwen", Vote: models.VoteFail, Score: 40},
		},
		Findings: []models.Finding{
			{
				Severity:   models.SeverityCritical,
				Category:   "security",
				Issue:      "sql injection via string concatenation",
				Suggestion: "use parameterized queries",
			},
		},
		Timestamp: time.Now(),
	}
}

func passedResult(requestID string) *models.EvaluationResult {
	return &models.EvaluationResult{
		RequestID:         requestID,
		Decision:          models.DecisionPass,
		Score:             90,
		ConsensusAchieved: true,
		Votes: map[string]models.ModelVote{
			"Codex": {Reviewer: "Codex", Vote: models.VotePass, Score: 88},
		},
		Timestamp: time.Now(),
	}
}

func TestJudgeCreatesPatternFromFinding(t *testing.T) {
	bank := newTestBank(t)
	req := models.NewEvaluationRequest(`query := "SELECT * FROM users WHERE id = " + id`, "go", models.KindCode)

	outcome, err := bank.Judge(req, blockedResult(req.ID), 1, 3)
	require.NoError(t, err)

	assert.False(t, outcome.WasSuccessful)
	assert.Equal(t, 1, outcome.NewPatternsCreated)
	assert.Equal(t, 0, outcome.PatternsUpdated)

	patterns, err := bank.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, models.PatternAnti, p.Type)
	assert.Equal(t, "security", p.IssueCategory)
	assert.Equal(t, "go", p.Language)
	assert.Equal(t, 0, p.SuccessCount)
	assert.Equal(t, 1, p.FailureCount)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)

	trajectories, err := bank.CountTrajectories()
	require.NoError(t, err)
	assert.Equal(t, 1, trajectories)
}

func TestJudgeReinforcesExistingPattern(t *testing.T) {
	bank := newTestBank(t)
	req := models.NewEvaluationRequest(`query := "SELECT * FROM users WHERE id = " + id`, "go", models.KindCode)

	_, err := bank.Judge(req, blockedResult(req.ID), 1, 3)
	require.NoError(t, err)

	outcome, err := bank.Judge(req, blockedResult(req.ID), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.PatternsUpdated)
	assert.Equal(t, 0, outcome.NewPatternsCreated)

	patterns, err := bank.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].FailureCount)
	// Second observation: (0 successes) / (0 + 1 failures + 1).
	assert.InDelta(t, 0.0, patterns[0].Confidence, 1e-9)
}

func TestJudgeCleanPassRecordsGoodPattern(t *testing.T) {
	bank := newTestBank(t)
	req := models.NewEvaluationRequest("func add(a, b int) int { return a + b }", "go", models.KindCode)

	outcome, err := bank.Judge(req, passedResult(req.ID), 1, 3)
	require.NoError(t, err)
	assert.True(t, outcome.WasSuccessful)
	assert.Equal(t, 1, outcome.NewPatternsCreated)

	patterns, err := bank.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternGood, patterns[0].Type)
	assert.Equal(t, "success", patterns[0].IssueCategory)
	assert.InDelta(t, 1.0, patterns[0].Confidence, 1e-9)
}

func TestJudgeOverBudgetIsNotSuccessful(t *testing.T) {
	bank := newTestBank(t)
	req := models.NewEvaluationRequest("fn main() {}", "rust", models.KindCode)

	outcome, err := bank.Judge(req, passedResult(req.ID), 4, 3)
	require.NoError(t, err)
	assert.False(t, outcome.WasSuccessful)
}

func TestRetrieveBySignature(t *testing.T) {
	bank := newTestBank(t)
	code := `query := "SELECT * FROM users WHERE id = " + id`
	req := models.NewEvaluationRequest(code, "go", models.KindCode)

	_, err := bank.Judge(req, blockedResult(req.ID), 1, 3)
	require.NoError(t, err)

	// Same shape, different whitespace: the signature must still match.
	again := models.NewEvaluationRequest("  "+code+"\n\n", "go", models.KindCode)
	matches, err := bank.Retrieve(again)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, 1.0, matches[0].Relevance)
	assert.Equal(t, "security", matches[0].Pattern.IssueCategory)
}

func TestRetrieveByKeyword(t *testing.T) {
	bank := newTestBank(t)
	seed := models.NewEvaluationRequest(`db.Exec("SELECT * FROM accounts")`, "go", models.KindCode)

	_, err := bank.Judge(seed, blockedResult(seed.ID), 1, 3)
	require.NoError(t, err)

	// Different code that shares the sql keyword and language.
	other := models.NewEvaluationRequest(`rows, _ := db.Query("SELECT name FROM users")`, "go", models.KindCode)
	matches, err := bank.Retrieve(other)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, 0.7, matches[0].Relevance)
}

func TestRetrieveCapsResults(t *testing.T) {
	cfg := config.ReasoningConfig{
		Enabled:             true,
		DBPath:              filepath.Join(t.TempDir(), "bank.db"),
		MaxPatternsPerQuery: 1,
	}
	bank, err := NewBank(cfg, logger.Nop())
	require.NoError(t, err)
	defer bank.Close()

	req := models.NewEvaluationRequest(`db.Exec("SELECT 1")`, "go", models.KindCode)
	result := blockedResult(req.ID)
	result.Findings = append(result.Findings, models.Finding{
		Severity: models.SeverityError,
		Category: "logic",
		Issue:    "sql query ignores errors",
	})
	_, err = bank.Judge(req, result, 1, 3)
	require.NoError(t, err)

	matches, err := bank.Retrieve(req)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestConsolidateReclassifies(t *testing.T) {
	bank := newTestBank(t)
	req := models.NewEvaluationRequest(`exec(userInput)`, "python", models.KindCode)

	// Five failures on the same finding push the ratio past 0.8.
	for i := 0; i < 5; i++ {
		_, err := bank.Judge(req, blockedResult(req.ID), 1, 3)
		require.NoError(t, err)
	}

	report, err := bank.Consolidate()
	require.NoError(t, err)
	assert.Equal(t, 0, report.MergedPatterns)
	assert.Equal(t, 0, report.PrunedPatterns)

	patterns, err := bank.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, models.PatternAnti, patterns[0].Type)
	assert.InDelta(t, 0.0, patterns[0].Confidence, 1e-9)
}

func TestDistillReport(t *testing.T) {
	bank := newTestBank(t)

	good := models.NewEvaluationRequest("func ok() {}", "go", models.KindCode)
	_, err := bank.Judge(good, passedResult(good.ID), 1, 3)
	require.NoError(t, err)

	bad := models.NewEvaluationRequest(`eval(input)`, "python", models.KindCode)
	_, err = bank.Judge(bad, blockedResult(bad.ID), 2, 3)
	require.NoError(t, err)

	report, err := bank.Distill()
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalPatterns)
	assert.Equal(t, 2, report.TotalTrajectories)
	require.Len(t, report.TopAntiPatterns, 1)
	assert.Equal(t, "security", report.TopAntiPatterns[0].IssueCategory)
	require.Len(t, report.TopGoodPatterns, 1)
	assert.Equal(t, "success", report.TopGoodPatterns[0].IssueCategory)
	assert.Equal(t, 1, report.AntiPatternCategories["security"])
	assert.InDelta(t, 1.0, report.AvgLoopsToConsensus, 1e-9)
	assert.Len(t, report.LanguageStats, 2)
}

func TestDistillSeparatesPatternTypes(t *testing.T) {
	bank := newTestBank(t)

	// Enough anti-patterns to fill their list on their own.
	for i := 0; i < 12; i++ {
		req := models.NewEvaluationRequest(fmt.Sprintf("eval(input_%d)", i), "python", models.KindCode)
		_, err := bank.Judge(req, blockedResult(req.ID), 1, 3)
		require.NoError(t, err)
	}

	good := models.NewEvaluationRequest("func ok() {}", "go", models.KindCode)
	_, err := bank.Judge(good, passedResult(good.ID), 1, 3)
	require.NoError(t, err)

	report, err := bank.Distill()
	require.NoError(t, err)

	assert.Len(t, report.TopAntiPatterns, 10)
	for _, p := range report.TopAntiPatterns {
		assert.Equal(t, models.PatternAnti, p.Type)
	}
	require.Len(t, report.TopGoodPatterns, 1)
	assert.Equal(t, models.PatternGood, report.TopGoodPatterns[0].Type)
}

func TestPlanAnalysisUsesFencedCode(t *testing.T) {
	bank := newTestBank(t)
	code := `query := "SELECT * FROM users WHERE id = " + id`
	plan := "# Rollout\n\nAdd the lookup.\n\n```go\n" + code + "\n```\n"

	planReq := models.NewEvaluationRequest(plan, "markdown", models.KindPlan)
	_, err := bank.Judge(planReq, blockedResult(planReq.ID), 1, 3)
	require.NoError(t, err)

	// A later review of the bare snippet lands on the plan's pattern
	// because the signature ignores the surrounding prose.
	codeReq := models.NewEvaluationRequest(code, "go", models.KindCode)
	matches, err := bank.Retrieve(codeReq)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, 1.0, matches[0].Relevance)
	assert.Equal(t, "security", matches[0].Pattern.IssueCategory)
}

func TestSchemaIndexes(t *testing.T) {
	bank := newTestBank(t)

	rows, err := bank.db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{
		"idx_patterns_category",
		"idx_patterns_signature",
		"idx_patterns_type",
		"idx_trajectories_pattern",
	}, names)
}

func TestExportImportRoundtrip(t *testing.T) {
	source := newTestBank(t)
	req := models.NewEvaluationRequest(`query := "SELECT * FROM t"`, "go", models.KindCode)
	_, err := source.Judge(req, blockedResult(req.ID), 1, 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, source.Export(path))

	target := newTestBank(t)
	report, err := target.Import(path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 0, report.Merged)
	assert.Equal(t, 0, report.Skipped)

	// Importing the same snapshot again carries no new evidence.
	report, err = target.Import(path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	assert.Equal(t, 1, report.Skipped)

	patterns, err := target.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "security", patterns[0].IssueCategory)
}

func TestImportMergesHigherEvidence(t *testing.T) {
	source := newTestBank(t)
	req := models.NewEvaluationRequest(`query := "SELECT * FROM t"`, "go", models.KindCode)
	for i := 0; i < 3; i++ {
		_, err := source.Judge(req, blockedResult(req.ID), 1, 3)
		require.NoError(t, err)
	}

	target := newTestBank(t)
	_, err := target.Judge(req, blockedResult(req.ID), 1, 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "knowledge.json")
	require.NoError(t, source.Export(path))

	report, err := target.Import(path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	patterns, err := target.AllPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 4, patterns[0].FailureCount)
}
