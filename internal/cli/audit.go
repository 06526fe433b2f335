package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plantviz/plantviz/internal/audit"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <log-file>",
	Short: "Verify the hash chain of an audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := audit.Verify(args[0])
		if err != nil {
			return fmt.Errorf("chain invalid after %d entries: %w", count, err)
		}
		fmt.Printf("OK: %d entries, chain intact\n", count)
		return nil
	},
}
