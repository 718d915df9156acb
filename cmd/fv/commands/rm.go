package commands

import (
	"fmt"

	"filevault/pkg/types"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [hash]",
	Short: "Drop the locally cached copy of an object",
	Long:  "Removes only the local cache entry. Remote objects are never deleted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash := types.Hash(args[0])
		if !hash.IsValid() {
			return fmt.Errorf("invalid content hash: %s", args[0])
		}

		if err := FV.Archive.CleanupFile(cliCache(), hash); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
