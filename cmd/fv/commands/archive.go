package commands

import (
	"fmt"

	"filevault/pkg/types"

	"github.com/spf13/cobra"
)

var archiveHash string

var archiveCmd = &cobra.Command{
	Use:   "archive [file]",
	Short: "Archive a file and print its content hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// hash 可以由调用方预先算好传入 (比如上游流水线已经算过)
		hash, err := FV.Archive.ArchiveFile(cmd.Context(), args[0], types.Hash(archiveHash))
		if err != nil {
			return fmt.Errorf("archive failed: %w", err)
		}

		fmt.Println(hash)
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVar(&archiveHash, "hash", "", "Precomputed content hash (skips hashing)")
	rootCmd.AddCommand(archiveCmd)
}
