package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/tetrad/internal/mcp"
	"github.com/harrison/tetrad/internal/pattern"
)

// NewEvaluateCommand creates the 'tetrad evaluate' command
func NewEvaluateCommand(configPath *string) *cobra.Command {
	var language string
	var kind string
	var contextNote string

	cmd := &cobra.Command{
		Use:   "evaluate [file]",
		Short: "Run one evaluation from the command line",
		Long: `Evaluate a file (or stdin when no file is given) through the same
pipeline the MCP tools use and print the consensus result as JSON.

Examples:
  # Review a source file
  tetrad evaluate main.go

  # Review a plan from stdin
  cat plan.md | tetrad evaluate --kind plan

  # Review tests with extra reviewer context
  tetrad evaluate main_test.go --kind tests --context "focus on edge cases"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runEvaluate(cmd, *configPath, file, language, kind, contextNote)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Programming language (auto-detected if empty)")
	cmd.Flags().StringVar(&kind, "kind", "code", "Evaluation kind (plan|code|tests)")
	cmd.Flags().StringVar(&contextNote, "context", "", "Additional context passed to the reviewers")

	return cmd
}

func runEvaluate(cmd *cobra.Command, configPath, file, language, kind, contextNote string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	var content []byte
	if file != "" {
		content, err = os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read input file: %w", err)
		}
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}
	if len(content) == 0 {
		return fmt.Errorf("nothing to evaluate")
	}

	handler, err := mcp.NewHandler(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer handler.Close()

	var tool string
	var arguments any
	switch kind {
	case "plan":
		tool = "tetrad_review_plan"
		arguments = map[string]string{"plan": string(content), "context": contextNote}
	case "tests":
		tool = "tetrad_review_tests"
		arguments = map[string]string{"tests": string(content), "language": language, "context": contextNote}
	case "code":
		if language == "" {
			language = pattern.DetectLanguage(string(content))
		}
		tool = "tetrad_review_code"
		arguments = map[string]string{
			"code":      string(content),
			"language":  language,
			"file_path": file,
			"context":   contextNote,
		}
	default:
		return fmt.Errorf("invalid kind %q: must be plan, code, or tests", kind)
	}

	argsJSON, err := json.Marshal(arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}

	result := handler.Call(context.Background(), tool, argsJSON)
	for _, block := range result.Content {
		fmt.Fprintln(cmd.OutOrStdout(), block.Text)
	}
	if result.IsError {
		return fmt.Errorf("evaluation failed")
	}
	return nil
}
