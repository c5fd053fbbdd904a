package reviewer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

func testRequest() *models.EvaluationRequest {
	return models.NewEvaluationRequest("fn main() {}", "rust", models.KindCode)
}

func TestBuildPrompt(t *testing.T) {
	req := testRequest().WithContext("focus on error handling")
	prompt := BuildPrompt(req)

	assert.Contains(t, prompt, "rust")
	assert.Contains(t, prompt, "code review")
	assert.Contains(t, prompt, "fn main() {}")
	assert.Contains(t, prompt, "focus on error handling")
	assert.Contains(t, prompt, `"vote": "PASS" | "WARN" | "FAIL"`)
	assert.Contains(t, prompt, `"score": 0-100`)
}

func TestParseResponseValid(t *testing.T) {
	output := `
		Some text before
		{"vote": "PASS", "score": 85, "reasoning": "Good code", "issues": [], "suggestions": []}
		Some text after
	`
	resp, err := ParseResponse(output, "Codex")

	require.NoError(t, err)
	assert.Equal(t, "PASS", resp.Vote)
	assert.Equal(t, 85, resp.Score)
	assert.Equal(t, "Good code", resp.Reasoning)
}

func TestParseResponseNoJSON(t *testing.T) {
	_, err := ParseResponse("No JSON here", "Codex")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExecutorFailed)
}

func TestParseResponseSkipsDecoys(t *testing.T) {
	// The first balanced object lacks the required fields; the scanner
	// must keep going.
	output := `{"log": "starting"} {"vote": "WARN", "score": 60, "reasoning": "hm"}`

	resp, err := ParseResponse(output, "Qwen")
	require.NoError(t, err)
	assert.Equal(t, "WARN", resp.Vote)
	assert.Equal(t, 60, resp.Score)
}

func TestParseResponseBracesInsideStrings(t *testing.T) {
	output := `{"vote": "PASS", "score": 90, "reasoning": "uses {braces} and \"quotes\" safely"}`

	resp, err := ParseResponse(output, "Gemini")
	require.NoError(t, err)
	assert.Equal(t, 90, resp.Score)
	assert.Contains(t, resp.Reasoning, "{braces}")
}

func TestParseResponseInsideCodeFence(t *testing.T) {
	output := "```json\n{\"vote\": \"FAIL\", \"score\": 20, \"reasoning\": \"bad\"}\n```"

	resp, err := ParseResponse(output, "Codex")
	require.NoError(t, err)
	assert.Equal(t, "FAIL", resp.Vote)
}

func TestResponseToVoteClampsScore(t *testing.T) {
	resp := &Response{Vote: "pass", Score: 150}
	vote := resp.ToVote("Codex")

	assert.Equal(t, models.VotePass, vote.Vote)
	assert.Equal(t, 100, vote.Score)
	assert.Equal(t, "Codex", vote.Reviewer)
}

func TestAnalyzeTextFail(t *testing.T) {
	resp := AnalyzeText("There is a security vulnerability in this code.")

	assert.Equal(t, "FAIL", resp.Vote)
	assert.Equal(t, 35, resp.Score)
}

func TestAnalyzeTextWarnBands(t *testing.T) {
	minor := AnalyzeText("Minor issue: consider renaming this variable.")
	assert.Equal(t, "WARN", minor.Vote)
	assert.Equal(t, 70, minor.Score)

	plain := AnalyzeText("There is an issue with the loop bounds.")
	assert.Equal(t, "WARN", plain.Vote)
	assert.Equal(t, 60, plain.Score)
}

func TestAnalyzeTextPassBands(t *testing.T) {
	excellent := AnalyzeText("Excellent work, nothing to report.")
	assert.Equal(t, "PASS", excellent.Vote)
	assert.Equal(t, 95, excellent.Score)

	good := AnalyzeText("The code is correct.")
	assert.Equal(t, "PASS", good.Vote)
	assert.Equal(t, 85, good.Score)

	neutral := AnalyzeText("Reviewed.")
	assert.Equal(t, "PASS", neutral.Vote)
	assert.Equal(t, 80, neutral.Score)
}

func TestAnalyzeTextPortugueseKeywords(t *testing.T) {
	resp := AnalyzeText("Encontrei uma vulnerabilidade de SQL injection.")
	assert.Equal(t, "FAIL", resp.Vote)
}

func TestAnalyzeTextExtractsBullets(t *testing.T) {
	text := `Issues found:
- first problem
* second problem
• third problem
- fourth
- fifth
- sixth is dropped
`
	resp := AnalyzeText(text)
	assert.Len(t, resp.Issues, 5)
	assert.Equal(t, "first problem", resp.Issues[0])
	assert.Equal(t, "third problem", resp.Issues[2])
}

func TestAnalyzeTextTruncatesReasoning(t *testing.T) {
	long := strings.Repeat("a", 600)
	resp := AnalyzeText(long)
	assert.Len(t, resp.Reasoning, 500)
}

func TestParseCodexEvents(t *testing.T) {
	stream := `{"type":"turn.started"}
{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}
{"type":"item.completed","item":{"type":"agent_message","text":"{\"vote\": \"PASS\", \"score\": 88, \"reasoning\": \"ok\"}"}}
{"type":"turn.completed"}`

	message, ok := parseCodexEvents(stream)
	require.True(t, ok)
	assert.Contains(t, message, `"score": 88`)
}

func TestParseCodexEventsNoAgentMessage(t *testing.T) {
	_, ok := parseCodexEvents(`{"type":"turn.started"}`)
	assert.False(t, ok)
}

func TestParseGeminiOutputWrapper(t *testing.T) {
	output := `Loading model...
{"session_id":"abc","response":"{\"vote\": \"WARN\", \"score\": 65, \"reasoning\": \"meh\"}","stats":{}}`

	resp, ok := parseGeminiOutput(output)
	require.True(t, ok)
	assert.Equal(t, "WARN", resp.Vote)
	assert.Equal(t, 65, resp.Score)
}

func TestParseGeminiOutputWrapperTextFallback(t *testing.T) {
	output := `{"session_id":"abc","response":"The code looks correct to me.","stats":{}}`

	resp, ok := parseGeminiOutput(output)
	require.True(t, ok)
	assert.Equal(t, "PASS", resp.Vote)
	assert.Equal(t, 85, resp.Score)
}

func TestStderrIndicatesError(t *testing.T) {
	assert.True(t, stderrIndicatesError("Error: network unreachable"))
	assert.True(t, stderrIndicatesError("fatal error occurred"))
	assert.False(t, stderrIndicatesError(""))
	assert.False(t, stderrIndicatesError("Loaded cached credentials. Error count: 0"))
	assert.False(t, stderrIndicatesError("just some logging"))
}

func TestInvokerMissingBinary(t *testing.T) {
	inv := Invoker{Command: "tetrad-no-such-binary", Timeout: 2 * time.Second}

	_, err := inv.Invoke(context.Background(), "Test", "prompt")
	assert.ErrorIs(t, err, models.ErrExecutorNotFound)
	assert.False(t, inv.IsAvailable(context.Background()))
}

func TestMissingBinaryYieldsNeutralVote(t *testing.T) {
	cfg := config.ExecutorConfig{Enabled: true, Command: "tetrad-no-such-binary", TimeoutSecs: 2}

	for _, r := range []Reviewer{
		NewCodex(cfg, logger.Nop()),
		NewGemini(cfg, logger.Nop()),
		NewQwen(cfg, logger.Nop()),
	} {
		vote, err := r.Evaluate(context.Background(), testRequest())
		require.NoError(t, err, r.Name())
		assert.Equal(t, models.VoteWarn, vote.Vote)
		assert.Equal(t, 50, vote.Score)
		assert.Contains(t, vote.Reasoning, "not available")
	}
}

func TestInvokerTimeout(t *testing.T) {
	inv := Invoker{Command: "sleep", Timeout: 50 * time.Millisecond}

	_, err := inv.Invoke(context.Background(), "Test", "5")
	assert.ErrorIs(t, err, models.ErrExecutorTimeout)
}

func TestNewFleetHonorsEnabledFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	gemini := cfg.Executors[config.ReviewerGemini]
	gemini.Enabled = false
	cfg.Executors[config.ReviewerGemini] = gemini

	fleet := NewFleet(cfg, logger.Nop())
	require.Len(t, fleet, 2)
	assert.Equal(t, "Codex", fleet[0].Name())
	assert.Equal(t, "Qwen", fleet[1].Name())
	assert.Equal(t, "syntax", fleet[0].Specialization())
	assert.Equal(t, "logic", fleet[1].Specialization())
}
