// Package cmd defines the tetrad CLI. The core work happens over MCP via
// the serve command; the remaining commands are operator conveniences
// around the same pipeline.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for tetrad
func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tetrad",
		Short: "Multi-reviewer code review consensus server",
		Long: `Tetrad runs code, plans, and tests through a fleet of external
reviewer CLIs (Codex, Gemini, Qwen), aggregates their votes under a
configurable consensus rule, and exposes the result as MCP tools.

Evaluations feed a persistent reasoning bank that accumulates known
good and bad code patterns over time.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to tetrad config file (default: ./tetrad.toml)")

	cmd.AddCommand(NewServeCommand(&configPath))
	cmd.AddCommand(NewEvaluateCommand(&configPath))
	cmd.AddCommand(NewStatusCommand(&configPath))
	cmd.AddCommand(NewKnowledgeCommand(&configPath))

	return cmd
}

// loadConfig resolves the config file: the explicit --config path when
// given, discovery in the working directory otherwise.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.Discover(".")
}

// newLogger builds the process logger from the general config section.
func newLogger(cfg *config.Config) *logger.ConsoleLogger {
	return logger.New(cfg.General.LogLevel, cfg.General.LogFormat)
}
