package commands

import (
	"fmt"
	"time"

	"filevault/pkg/bulk"

	"github.com/spf13/cobra"
)

var dirWorkers int

var archiveDirCmd = &cobra.Command{
	Use:   "archive-dir [dir]",
	Short: "Archive every file under a directory (respects .fvignore)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		archiver := bulk.NewArchiver(FV.Archive,
			bulk.WithWorkers(dirWorkers),
			bulk.WithLogger(FV.Log),
		)

		results, err := archiver.ArchiveDir(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("archive-dir failed: %w", err)
		}

		var totalSize int64
		for _, r := range results {
			fmt.Printf("%s  %s\n", r.Hash, r.Path)
			totalSize += r.Size
		}
		fmt.Printf("✅ Archived %d files (%d bytes) in %s\n", len(results), totalSize, time.Since(start))
		return nil
	},
}

func init() {
	archiveDirCmd.Flags().IntVar(&dirWorkers, "workers", bulk.DefaultWorkers, "Concurrent uploads")
	rootCmd.AddCommand(archiveDirCmd)
}
