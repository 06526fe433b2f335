package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/config"
	"github.com/plantviz/plantviz/internal/render"
)

var (
	checkJSON   bool
	checkServer string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Emit the diagnostic as JSON")
	checkCmd.Flags().StringVar(&checkServer, "server", "", "PlantUML rendering server URL")
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate diagram syntax",
	Long:  "Submits a PlantUML file to the rendering service and reports syntax errors\nwith the failing line number. Exit status is non-zero for invalid diagrams.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read diagram: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if checkServer != "" {
		cfg.ServerURL = checkServer
	}

	client := render.NewClient(cfg.ServerURL, cfg.Timeout())
	diag, err := client.Check(context.Background(), string(source))
	if err != nil {
		return err
	}

	if checkJSON {
		out := map[string]any{"valid": diag == nil}
		if diag != nil {
			out["line"] = diag.Line
			out["error"] = diag.Error
			if diag.Description != "" {
				out["description"] = diag.Description
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else if diag == nil {
		fmt.Printf("%s: OK\n", args[0])
	} else {
		fmt.Printf("%s: syntax error at line %d: %s\n", args[0], diag.Line, diag.Error)
	}

	if diag != nil {
		os.Exit(1)
	}
	return nil
}
