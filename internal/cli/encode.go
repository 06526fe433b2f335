package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/codec"
	"github.com/plantviz/plantviz/internal/config"
	"github.com/plantviz/plantviz/internal/render"
)

var encodeURL bool

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().BoolVar(&encodeURL, "url", false, "Print the full rendering URL instead of the bare token")
}

var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Encode diagram source into a URL token",
	Long:  "Compresses PlantUML source and prints the URL-safe token the rendering\nservice expects. Reads from stdin when no file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEncode,
}

func runEncode(cmd *cobra.Command, args []string) error {
	var source []byte
	var err error
	if len(args) == 1 {
		source, err = os.ReadFile(args[0])
	} else {
		source, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read diagram: %w", err)
	}

	token := codec.Encode(string(source))
	if !encodeURL {
		fmt.Println(token)
		return nil
	}

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	client := render.NewClient(cfg.ServerURL, cfg.Timeout())
	fmt.Println(client.URL(string(source), cfg.DefaultFormat))
	return nil
}
