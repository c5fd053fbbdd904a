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

// Codex wraps the Codex CLI in `exec --json` mode, which emits a stream of
// newline-delimited JSON events. Specialization: syntax and conventions.
type Codex struct {
	base
}

// NewCodex builds the Codex adapter from its executor config.
func NewCodex(cfg config.ExecutorConfig, log *logger.ConsoleLogger) *Codex {
	return &Codex{base: newBase("Codex", "syntax", cfg, log)}
}

// codexEvent is one NDJSON event from codex exec --json. The agent's reply
// arrives as an item.completed event carrying an agent_message item.
type codexEvent struct {
	Type string `json:"type"`
	Item struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

// Evaluate runs one Codex review.
func (c *Codex) Evaluate(ctx context.Context, request *models.EvaluationRequest) (models.ModelVote, error) {
	prompt := BuildPrompt(request)

	result, err := c.invoker.Invoke(ctx, c.name, prompt)
	if err != nil {
		if errors.Is(err, models.ErrExecutorNotFound) {
			c.log.Warn("codex binary %q not found, substituting neutral vote", c.invoker.Command)
			return unavailableVote(c.name), nil
		}
		return models.ModelVote{}, err
	}

	if result.Stdout != "" {
		if message, ok := parseCodexEvents(result.Stdout); ok {
			if resp, err := ParseResponse(message, c.name); err == nil {
				return resp.ToVote(c.name), nil
			}
			c.log.Debug("codex agent message carried no JSON, using text analysis")
			return AnalyzeText(message).ToVote(c.name), nil
		}
	}

	if stderrIndicatesError(result.Stderr) {
		return models.ModelVote{}, models.ExecutorError(c.name, fmt.Errorf("%s", strings.TrimSpace(result.Stderr)))
	}

	if resp, err := ParseResponse(result.Stdout, c.name); err == nil {
		return resp.ToVote(c.name), nil
	}
	if result.Stdout != "" {
		return AnalyzeText(result.Stdout).ToVote(c.name), nil
	}

	return models.ModelVote{}, models.ExecutorError(c.name, fmt.Errorf("empty output"))
}

// parseCodexEvents scans the NDJSON stream for the first completed
// agent_message and returns its text.
func parseCodexEvents(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var event codexEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Type == "item.completed" && event.Item.Type == "agent_message" && event.Item.Text != "" {
			return event.Item.Text, true
		}
	}
	return "", false
}
