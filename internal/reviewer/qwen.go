package reviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

// Qwen wraps the Qwen CLI, which prints its reply straight to stdout.
// Specialization: logic bugs.
type Qwen struct {
	base
}

// NewQwen builds the Qwen adapter from its executor config.
func NewQwen(cfg config.ExecutorConfig, log *logger.ConsoleLogger) *Qwen {
	return &Qwen{base: newBase("Qwen", "logic", cfg, log)}
}

// Evaluate runs one Qwen review.
func (q *Qwen) Evaluate(ctx context.Context, request *models.EvaluationRequest) (models.ModelVote, error) {
	prompt := BuildPrompt(request)

	result, err := q.invoker.Invoke(ctx, q.name, prompt)
	if err != nil {
		if errors.Is(err, models.ErrExecutorNotFound) {
			q.log.Warn("qwen binary %q not found, substituting neutral vote", q.invoker.Command)
			return unavailableVote(q.name), nil
		}
		return models.ModelVote{}, err
	}

	if result.Stdout != "" {
		if resp, err := ParseResponse(result.Stdout, q.name); err == nil {
			return resp.ToVote(q.name), nil
		}
		return AnalyzeText(result.Stdout).ToVote(q.name), nil
	}

	if stderrIndicatesError(result.Stderr) {
		return models.ModelVote{}, models.ExecutorError(q.name, fmt.Errorf("%s", strings.TrimSpace(result.Stderr)))
	}
	return models.ModelVote{}, models.ExecutorError(q.name, fmt.Errorf("empty output"))
}
