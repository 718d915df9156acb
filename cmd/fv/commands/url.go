package commands

import (
	"fmt"

	"filevault/pkg/types"

	"github.com/spf13/cobra"
)

var (
	urlName string
	urlMime string
)

var urlCmd = &cobra.Command{
	Use:   "url [hash]",
	Short: "Generate a time-limited public URL for an archived object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash := types.Hash(args[0])
		if !hash.IsValid() {
			return fmt.Errorf("invalid content hash: %s", args[0])
		}

		url, err := FV.Archive.GenerateURL(cmd.Context(), hash, urlName, urlMime)
		if err != nil {
			return fmt.Errorf("url generation failed: %w", err)
		}
		if url == "" {
			return fmt.Errorf("no object archived under %s", hash)
		}

		fmt.Println(url)
		return nil
	},
}

func init() {
	urlCmd.Flags().StringVar(&urlName, "name", "", "Download file name (Content-Disposition)")
	urlCmd.Flags().StringVar(&urlMime, "type", "", "MIME type override (Content-Type)")
	rootCmd.AddCommand(urlCmd)
}
