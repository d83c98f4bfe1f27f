package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [manifest|url|label]",
	Short: "Show a published object",
	Long:  `Print a manifest as a chunk table, or the size of an encrypted chunk.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if CV == nil {
			return fmt.Errorf("app not initialized")
		}
		addr, err := resolveRef(cmd.Context(), CV, args[0])
		if err != nil {
			return err
		}
		if err := CV.GetExporter().PrintObject(cmd.Context(), addr, cmd.OutOrStdout(), CV.URLBase); err != nil {
			return fmt.Errorf("inspect failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
