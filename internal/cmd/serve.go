package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/tetrad/internal/mcp"
)

// NewServeCommand creates the 'tetrad serve' command
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Start the MCP server. The server speaks newline-delimited JSON-RPC 2.0
on stdin/stdout; all logging goes to stderr.

Register it with an MCP client as a stdio server, for example:

  {"command": "tetrad", "args": ["serve"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := mcp.NewTransport(os.Stdin, os.Stdout)
	server := mcp.NewServer(transport, handler, mcp.ServerInfo{
		Name:    "tetrad",
		Version: Version,
	}, log)

	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
