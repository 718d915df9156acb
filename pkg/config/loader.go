package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 否则按优先级搜索
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .fv
		viper.AddConfigPath(".fv")
		// 3. 用户主目录下的 .fv
		viper.AddConfigPath(filepath.Join(home, ".fv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (FV_S3_BUCKET 等)
	viper.SetEnvPrefix("FV")
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错 (可能全走环境变量/默认值)
		// 配置文件格式错才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Println("🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// 存储默认值
	wd, _ := os.Getwd()
	defaultStorePath := filepath.Join(wd, ".fv", "objects")
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", defaultStorePath)
	viper.SetDefault("storage.base_url", "http://localhost:8080/files")

	// S3 默认值
	viper.SetDefault("s3.region", "eu-west-1")

	// 签名 URL 有效期 (秒)
	viper.SetDefault("url.ttl", 84600)

	// Redis 存在性缓存 (redis.url 为空时不启用)
	viper.SetDefault("redis.ttl", "24h")

	// 日志级别
	viper.SetDefault("log.level", "info")
}
