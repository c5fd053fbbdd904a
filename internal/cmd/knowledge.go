package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/tetrad/internal/reasoning"
)

// NewKnowledgeCommand creates the 'tetrad knowledge' command group
func NewKnowledgeCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect and manage the reasoning bank",
		Long: `Work with the persistent reasoning bank: show what has been learned,
export it to a portable snapshot, import snapshots from other machines,
and run a consolidation pass by hand.`,
	}

	cmd.AddCommand(newKnowledgeShowCommand(configPath))
	cmd.AddCommand(newKnowledgeExportCommand(configPath))
	cmd.AddCommand(newKnowledgeImportCommand(configPath))
	cmd.AddCommand(newKnowledgeConsolidateCommand(configPath))

	return cmd
}

// openBank loads config and opens the reasoning bank, failing when the
// bank is disabled.
func openBank(configPath string) (*reasoning.Bank, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.Reasoning.Enabled {
		return nil, fmt.Errorf("reasoning bank is disabled in config")
	}
	bank, err := reasoning.NewBank(cfg.Reasoning, newLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("open reasoning bank: %w", err)
	}
	return bank, nil
}

func newKnowledgeShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print a report of learned patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(*configPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			report, err := bank.Distill()
			if err != nil {
				return err
			}

			output := cmd.OutOrStdout()
			bold := color.New(color.Bold).SprintFunc()

			fmt.Fprintf(output, "%s\n", bold("Knowledge Report"))
			fmt.Fprintf(output, "  patterns: %d  trajectories: %d\n",
				report.TotalPatterns, report.TotalTrajectories)
			if report.AvgLoopsToConsensus > 0 {
				fmt.Fprintf(output, "  avg loops to consensus: %.2f\n", report.AvgLoopsToConsensus)
			}

			if len(report.TopAntiPatterns) > 0 {
				fmt.Fprintf(output, "\n%s\n", bold("Top Anti-Patterns"))
				for _, p := range report.TopAntiPatterns {
					fmt.Fprintf(output, "  %s/%s conf=%.2f (%d+/%d-) %s\n",
						p.Language, p.IssueCategory, p.Confidence,
						p.SuccessCount, p.FailureCount, p.Description)
				}
			}

			if len(report.TopGoodPatterns) > 0 {
				fmt.Fprintf(output, "\n%s\n", bold("Top Good Patterns"))
				for _, p := range report.TopGoodPatterns {
					fmt.Fprintf(output, "  %s/%s conf=%.2f (%d+/%d-) %s\n",
						p.Language, p.IssueCategory, p.Confidence,
						p.SuccessCount, p.FailureCount, p.Description)
				}
			}

			if len(report.AntiPatternCategories) > 0 {
				fmt.Fprintf(output, "\n%s\n", bold("Anti-Pattern Categories"))
				categories := make([]string, 0, len(report.AntiPatternCategories))
				for category := range report.AntiPatternCategories {
					categories = append(categories, category)
				}
				sort.Strings(categories)
				for _, category := range categories {
					fmt.Fprintf(output, "  %-16s %d\n", category, report.AntiPatternCategories[category])
				}
			}

			if len(report.LanguageStats) > 0 {
				fmt.Fprintf(output, "\n%s\n", bold("Per-Language"))
				for _, ls := range report.LanguageStats {
					fmt.Fprintf(output, "  %-12s %3d pattern(s), %.0f%% good, avg confidence %.0f\n",
						ls.Language, ls.PatternCount, ls.SuccessRate*100, ls.AvgConfidence)
				}
			}

			return nil
		},
	}
}

func newKnowledgeExportCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the reasoning bank to a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(*configPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			if err := bank.Export(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported knowledge snapshot to %s\n", args[0])
			return nil
		},
	}
}

func newKnowledgeImportCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a JSON snapshot into the reasoning bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(*configPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			report, err := bank.Import(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, merged %d, skipped %d pattern(s)\n",
				report.Imported, report.Merged, report.Skipped)
			return nil
		},
	}
}

func newKnowledgeConsolidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Run a consolidation pass over the reasoning bank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := openBank(*configPath)
			if err != nil {
				return err
			}
			defer bank.Close()

			report, err := bank.Consolidate()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d, pruned %d, reinforced %d pattern(s)\n",
				report.MergedPatterns, report.PrunedPatterns, report.ReinforcedPatterns)
			return nil
		},
	}
}
