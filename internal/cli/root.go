package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "plantviz",
	Short: "PlantUML rendering tools for AI agents",
	Long: "Encodes PlantUML diagrams into rendering-service URL tokens, validates syntax\n" +
		"with machine-readable diagnostics, and saves rendered images behind a path sandbox.\n" +
		"Runs as an MCP server over stdio or directly from the shell.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
