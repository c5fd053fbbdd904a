// Package reviewer wraps the external reviewer CLIs (Codex, Gemini, Qwen)
// behind one interface. Each adapter spawns its subprocess with the prompt
// as the final positional argument, enforces its own timeout, and
// normalizes whatever comes back into a ModelVote.
package reviewer

import (
	"context"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

// Reviewer is one external reviewer CLI.
type Reviewer interface {
	// Name is the reviewer's display name (map key in vote sets).
	Name() string
	// Command is the configured binary name.
	Command() string
	// Specialization tags the reviewer's focus (syntax, architecture,
	// logic). Carried in status reporting only; the voting math ignores it.
	Specialization() string
	// IsAvailable probes the binary with --version.
	IsAvailable(ctx context.Context) bool
	// Version returns the first line of --version output.
	Version(ctx context.Context) (string, error)
	// Evaluate runs one review. Timeouts are fatal for this reviewer; a
	// missing binary yields a neutral Warn/50 vote instead of an error.
	Evaluate(ctx context.Context, request *models.EvaluationRequest) (models.ModelVote, error)
}

// NewFleet builds the enabled reviewers from config, in a stable order.
func NewFleet(cfg *config.Config, log *logger.ConsoleLogger) []Reviewer {
	var fleet []Reviewer
	if ec, ok := cfg.Executors[config.ReviewerCodex]; ok && ec.Enabled {
		fleet = append(fleet, NewCodex(ec, log))
	}
	if ec, ok := cfg.Executors[config.ReviewerGemini]; ok && ec.Enabled {
		fleet = append(fleet, NewGemini(ec, log))
	}
	if ec, ok := cfg.Executors[config.ReviewerQwen]; ok && ec.Enabled {
		fleet = append(fleet, NewQwen(ec, log))
	}
	return fleet
}

// unavailableVote is the neutral vote substituted when a reviewer binary is
// missing. Keeping the fleet at quorum matters more than the lost opinion.
func unavailableVote(name string) models.ModelVote {
	return models.ModelVote{
		Reviewer:  name,
		Vote:      models.VoteWarn,
		Score:     50,
		Reasoning: name + " CLI not available",
	}
}
