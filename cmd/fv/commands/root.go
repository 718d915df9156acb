package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"filevault/pkg/app"
	"filevault/pkg/config"
	"filevault/pkg/localcache"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	FV *app.App
)

var rootCmd = &cobra.Command{
	Use:   "fv",
	Short: "FileVault: content-addressed file archive",
	// PersistentPreRunE 会在所有子命令执行前运行，统一初始化 App
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		FV, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize filevault: %w", err)
		}
		return nil
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

// cliCache 返回 CLI 专用的本地缓存句柄
// 用固定目录而不是临时目录：get 和 rm 发生在不同的进程里
func cliCache() *localcache.Cache {
	return localcache.NewAt(filepath.Join(".fv", "cache"))
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fv/config.yaml)")

	// 2. 定义 storage 参数，并绑定到 Viper
	// 用户既可以在 yaml 里写，也可以用命令行覆盖
	rootCmd.PersistentFlags().String("storage-type", "", "Storage backend: disk or s3")
	rootCmd.PersistentFlags().String("storage-path", "", "Directory to store objects (disk backend)")
	rootCmd.PersistentFlags().String("bucket", "", "S3 bucket name")

	bindings := map[string]string{
		"storage.type": "storage-type",
		"storage.path": "storage-path",
		"s3.bucket":    "bucket",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
