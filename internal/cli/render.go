package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/config"
	"github.com/plantviz/plantviz/internal/render"
	"github.com/plantviz/plantviz/internal/sandbox"
)

var (
	renderFormat string
	renderOutput string
	renderServer string
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderFormat, "format", "", "Output format: svg or png (default from config)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output path for the rendered image (required)")
	renderCmd.Flags().StringVar(&renderServer, "server", "", "PlantUML rendering server URL")
	renderCmd.MarkFlagRequired("output")
}

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Render a diagram file to a local image",
	Long: "Renders a PlantUML file via the rendering service and writes the image to\n" +
		"--output. The output path must end in .svg or .png and sit inside an allowed\n" +
		"directory (PLANTVIZ_ALLOWED_DIRS).",
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read diagram: %w", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if renderServer != "" {
		cfg.ServerURL = renderServer
	}
	format := renderFormat
	if format == "" {
		format = cfg.DefaultFormat
	}

	decision := sandbox.IsPathAllowed(renderOutput)
	if !decision.Allowed {
		return fmt.Errorf("output path rejected: %s", decision.Reason)
	}

	client := render.NewClient(cfg.ServerURL, cfg.Timeout())
	result, err := client.Render(context.Background(), string(source), format)
	if err != nil {
		return err
	}
	if diag := result.Diagnostic; diag != nil {
		return fmt.Errorf("syntax error at line %d: %s", diag.Line, diag.Error)
	}

	if err := os.WriteFile(renderOutput, result.Data, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	fmt.Printf("Rendered %s → %s (%d bytes)\n", args[0], renderOutput, len(result.Data))
	return nil
}
