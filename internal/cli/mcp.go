package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/config"
	plantmcp "github.com/plantviz/plantviz/internal/mcp"
)

var (
	mcpConfigPath string
	mcpServerURL  string
	mcpCachePath  string
	mcpAuditLog   string
)

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpConfigPath, "config", "", "Path to config YAML (default ~/.plantviz/config.yaml)")
	mcpCmd.Flags().StringVar(&mcpServerURL, "server", "", "PlantUML rendering server URL")
	mcpCmd.Flags().StringVar(&mcpCachePath, "cache", "", "Path to syntax-check cache database")
	mcpCmd.Flags().StringVar(&mcpAuditLog, "audit-log", "", "Path to JSONL audit log")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs plantviz as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: plantuml_render, plantuml_check, plantuml_encode, plantuml_decode.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := plantmcp.New(plantmcp.Config{
		ConfigPath:   mcpConfigPath,
		ServerURL:    mcpServerURL,
		CachePath:    mcpCachePath,
		AuditLogPath: mcpAuditLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	// Hot-reload: watch the config file when one exists.
	watchPath := mcpConfigPath
	if watchPath == "" {
		watchPath = os.Getenv(config.EnvConfigPath)
	}
	if watchPath == "" {
		watchPath = config.DefaultPath()
	}
	if reloader, err := config.NewReloader(watchPath, srv.Reconfigure); err == nil {
		go func() {
			if err := reloader.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "config watcher stopped: %v\n", err)
			}
		}()
	}

	fmt.Fprintln(os.Stderr, "plantviz MCP server running on stdio")
	if mcpServerURL != "" {
		fmt.Fprintf(os.Stderr, "Rendering server: %s\n", mcpServerURL)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
