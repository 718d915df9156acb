// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"filevault/pkg/archive"
	"filevault/pkg/storage"
	"filevault/pkg/storage/cache"
	"filevault/pkg/storage/disk"
	"filevault/pkg/storage/s3"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Backend storage.Backend
	Archive *archive.Archive
	Log     zerolog.Logger
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	log := newLogger()

	// 1. 初始化存储后端 (按配置切换 disk / s3)
	backend, err := initBackend(ctx, &log)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 2. 可选的 Redis 存在性缓存 (装饰器)
	if redisURL := viper.GetString("redis.url"); redisURL != "" {
		backend, err = cache.NewCachedBackend(backend, cache.Config{
			RedisURL: redisURL,
			TTL:      viper.GetDuration("redis.ttl"),
			Logger:   &log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
	}

	// 3. 组装门面
	arch := archive.New(backend,
		archive.WithLogger(log),
		archive.WithURLTTL(time.Duration(viper.GetInt64("url.ttl"))*time.Second),
	)

	return &App{
		Backend: backend,
		Archive: arch,
		Log:     log,
	}, nil
}

func initBackend(ctx context.Context, log *zerolog.Logger) (storage.Backend, error) {
	switch storageType := viper.GetString("storage.type"); storageType {
	case "disk":
		root := viper.GetString("storage.path")
		if root == "" {
			return nil, fmt.Errorf("storage path not set")
		}
		return disk.NewAdapter(disk.Config{
			Root:    root,
			BaseURL: viper.GetString("storage.base_url"),
			Secret:  viper.GetString("storage.url_secret"),
			Logger:  log,
		})

	case "s3":
		bucket := viper.GetString("s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		return s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("s3.access_key_id"),
			SecretAccessKey: viper.GetString("s3.secret_access_key"),
			Logger:          log,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
