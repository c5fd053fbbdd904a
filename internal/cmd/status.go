package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/tetrad/internal/mcp"
)

// NewStatusCommand creates the 'tetrad status' command
func NewStatusCommand(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe reviewer availability and show configuration",
		Long: `Check which reviewer CLIs are reachable, show their versions, and
print the active consensus configuration and cache statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, *configPath, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, asJSON bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	handler, err := mcp.NewHandler(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer handler.Close()

	result := handler.Call(context.Background(), "tetrad_status", json.RawMessage(`{}`))
	if result.IsError {
		return fmt.Errorf("status failed: %s", result.Content[0].Text)
	}
	raw := result.Content[0].Text

	output := cmd.OutOrStdout()
	if asJSON {
		fmt.Fprintln(output, raw)
		return nil
	}

	var payload struct {
		Reviewers []struct {
			Name           string `json:"name"`
			Command        string `json:"command"`
			Specialization string `json:"specialization"`
			Available      bool   `json:"available"`
			Version        string `json:"version"`
		} `json:"reviewers"`
		Consensus struct {
			Rule     string `json:"rule"`
			MinScore int    `json:"min_score"`
			MaxLoops int    `json:"max_loops"`
		} `json:"consensus"`
		ReasoningEnabled bool `json:"reasoning_enabled"`
		PatternCount     int  `json:"pattern_count"`
		Cache            *struct {
			Hits     int64   `json:"hits"`
			Misses   int64   `json:"misses"`
			HitRate  float64 `json:"hit_rate"`
			Size     int     `json:"size"`
			Capacity int     `json:"capacity"`
		} `json:"cache"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("parse status payload: %w", err)
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(output, "%s\n", bold("Reviewers"))
	for _, r := range payload.Reviewers {
		mark := red("✗ unavailable")
		version := ""
		if r.Available {
			mark = green("✓ available")
			if r.Version != "" {
				version = " (" + r.Version + ")"
			}
		}
		fmt.Fprintf(output, "  %-8s %-14s %s%s  [%s]\n", r.Name, r.Command, mark, version, r.Specialization)
	}

	fmt.Fprintf(output, "\n%s\n", bold("Consensus"))
	fmt.Fprintf(output, "  rule=%s min_score=%d max_loops=%d\n",
		payload.Consensus.Rule, payload.Consensus.MinScore, payload.Consensus.MaxLoops)

	fmt.Fprintf(output, "\n%s\n", bold("Reasoning"))
	if payload.ReasoningEnabled {
		fmt.Fprintf(output, "  enabled, %d pattern(s) learned\n", payload.PatternCount)
	} else {
		fmt.Fprintln(output, "  disabled")
	}

	fmt.Fprintf(output, "\n%s\n", bold("Cache"))
	if payload.Cache != nil {
		fmt.Fprintf(output, "  %d/%d entries, %d hits / %d misses (%.0f%% hit rate)\n",
			payload.Cache.Size, payload.Cache.Capacity,
			payload.Cache.Hits, payload.Cache.Misses, payload.Cache.HitRate*100)
	} else {
		fmt.Fprintln(output, "  disabled")
	}

	return nil
}
