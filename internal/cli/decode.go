package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/codec"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Decode a URL token back into diagram source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := codec.Decode(args[0])
		if err != nil {
			return err
		}
		fmt.Print(source)
		return nil
	},
}
