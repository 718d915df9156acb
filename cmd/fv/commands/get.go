package commands

import (
	"fmt"

	"filevault/pkg/types"

	"github.com/spf13/cobra"
)

var getName string

var getCmd = &cobra.Command{
	Use:   "get [hash]",
	Short: "Download an archived object into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash := types.Hash(args[0])
		if !hash.IsValid() {
			return fmt.Errorf("invalid content hash: %s", args[0])
		}

		localPath, err := FV.Archive.LoadFile(cmd.Context(), cliCache(), hash, getName)
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
		if localPath == "" {
			// “不存在”是正常结果，但对 CLI 用户要说清楚
			return fmt.Errorf("no object archived under %s", hash)
		}

		fmt.Println(localPath)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVarP(&getName, "name", "o", "", "Preferred local file name")
	rootCmd.AddCommand(getCmd)
}
