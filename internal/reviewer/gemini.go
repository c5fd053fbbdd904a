package reviewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

// Gemini wraps the Gemini CLI in `-o json` mode, which returns a wrapper
// object around the model's text reply. Specialization: architecture and
// design.
type Gemini struct {
	base
}

// NewGemini builds the Gemini adapter from its executor config.
func NewGemini(cfg config.ExecutorConfig, log *logger.ConsoleLogger) *Gemini {
	return &Gemini{base: newBase("Gemini", "architecture", cfg, log)}
}

// geminiWrapper is the -o json envelope: {"session_id", "response", "stats"}.
type geminiWrapper struct {
	SessionID string          `json:"session_id"`
	Response  string          `json:"response"`
	Stats     json.RawMessage `json:"stats"`
}

// Evaluate runs one Gemini review.
func (g *Gemini) Evaluate(ctx context.Context, request *models.EvaluationRequest) (models.ModelVote, error) {
	prompt := BuildPrompt(request)

	result, err := g.invoker.Invoke(ctx, g.name, prompt)
	if err != nil {
		if errors.Is(err, models.ErrExecutorNotFound) {
			g.log.Warn("gemini binary %q not found, substituting neutral vote", g.invoker.Command)
			return unavailableVote(g.name), nil
		}
		return models.ModelVote{}, err
	}

	if result.Stdout != "" {
		if resp, ok := parseGeminiOutput(result.Stdout); ok {
			return resp.ToVote(g.name), nil
		}
		g.log.Debug("gemini stdout was not parseable, checking stderr")
	}

	if stderrIndicatesError(result.Stderr) {
		return models.ModelVote{}, models.ExecutorError(g.name, fmt.Errorf("%s", strings.TrimSpace(result.Stderr)))
	}

	// Some gemini builds write their payload to stderr.
	if result.Stdout == "" && result.Stderr != "" {
		if resp, ok := parseGeminiOutput(result.Stderr); ok {
			return resp.ToVote(g.name), nil
		}
	}

	if result.Stdout != "" {
		return AnalyzeText(result.Stdout).ToVote(g.name), nil
	}
	return models.ModelVote{}, models.ExecutorError(g.name, fmt.Errorf("empty output"))
}

// parseGeminiOutput unwraps the -o json envelope and extracts a structured
// response from its text, degrading to keyword analysis of the reply.
func parseGeminiOutput(output string) (*Response, bool) {
	// Log lines can precede the JSON document.
	if start := strings.IndexByte(output, '{'); start >= 0 {
		output = output[start:]
	}

	var wrapper geminiWrapper
	if err := json.Unmarshal([]byte(output), &wrapper); err == nil && wrapper.Response != "" {
		if resp, err := ParseResponse(wrapper.Response, "Gemini"); err == nil {
			return resp, true
		}
		return AnalyzeText(wrapper.Response), true
	}

	if resp, err := ParseResponse(output, "Gemini"); err == nil {
		return resp, true
	}
	return nil, false
}
