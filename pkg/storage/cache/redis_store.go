package cache

import (
	"context"
	"fmt"
	"time"

	"filevault/pkg/storage"
	"filevault/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedBackend 是一个装饰器，它为底层的 storage.Backend 添加 Redis 存在性缓存
// 价值：Locate 是最高频的调用 (Store 去重、LoadFile、GenerateURL 都要先 Locate)，
// 命中缓存时可以省掉一次对象存储的网络往返
type CachedBackend struct {
	backend storage.Backend // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

type Config struct {
	RedisURL string // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration
	Logger   *zerolog.Logger
}

// locateEntry 是缓存条目，CBOR 编码后存入 Redis
// 存完整的 StorageKey 而不是布尔值：命中时 Locate 可以直接返回 Key
type locateEntry struct {
	Key       string `cbor:"key"`
	CheckedAt int64  `cbor:"checked_at"`
}

func NewCachedBackend(backend storage.Backend, cfg Config) (*CachedBackend, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connect to redis: %v", storage.ErrInit, err)
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	return &CachedBackend{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		log:     log,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (c *CachedBackend) cacheKey(hash types.Hash) string {
	return "fv:loc:" + hash.String()
}

// Locate 优先查 Redis
// 架构决策：缓存故障降级 (Fail-Open)
// Redis 挂了不能让整个归档流程瘫痪，退化为直连底层存储
// 注意只缓存“存在”，不缓存“不存在”——对象随时可能被别的调用方归档进来
func (c *CachedBackend) Locate(ctx context.Context, hash types.Hash) (string, error) {
	rkey := c.cacheKey(hash)

	raw, err := c.client.Get(ctx, rkey).Bytes()
	if err == nil {
		var entry locateEntry
		if cbor.Unmarshal(raw, &entry) == nil && entry.Key != "" {
			// Cache Hit! 不需要碰对象存储
			return entry.Key, nil
		}
		// 条目损坏：删掉，当作 miss 处理
		c.client.Del(ctx, rkey)
	} else if err != redis.Nil {
		c.log.Warn().Err(err).Msg("redis locate lookup failed, falling through")
	}

	// Cache Miss，查底层存储
	key, err := c.backend.Locate(ctx, hash)
	if err != nil {
		return "", err
	}

	// 缓存回填 (只回填存在的对象)
	if key != "" {
		c.fill(hash, key)
	}
	return key, nil
}

// fill 异步回填，不阻塞主流程
// 使用独立的 context：即使上层 ctx 取消，回填也能完成
func (c *CachedBackend) fill(hash types.Hash, key string) {
	entry := locateEntry{Key: key, CheckedAt: time.Now().Unix()}
	raw, err := cbor.Marshal(entry)
	if err != nil {
		return
	}
	go func() {
		fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.client.Set(fillCtx, c.cacheKey(hash), raw, c.ttl)
	}()
}

// Store 先用缓存做去重预检，未命中才穿透到底层
// 内容寻址保证了这里不会有失效问题：同一个 Hash 的 Key 永远不变
func (c *CachedBackend) Store(ctx context.Context, localPath string, hash types.Hash) (string, error) {
	// 缓存命中时这一步 < 1ms，整个上传直接跳过
	// 预检的 err 故意吞掉：和 Locate 一样 fail-open，预检挂了就照常上传
	if key, err := c.Locate(ctx, hash); err == nil && key != "" {
		c.log.Debug().Str("event", "dedup-skip").Str("hash", hash.String()).Msg("object known via cache")
		return key, nil
	}

	key, err := c.backend.Store(ctx, localPath, hash)
	if err != nil {
		return "", err
	}

	entry := locateEntry{Key: key, CheckedAt: time.Now().Unix()}
	if raw, merr := cbor.Marshal(entry); merr == nil {
		// 这里的 Set 错误可以忽略，不影响主流程
		c.client.Set(ctx, c.cacheKey(hash), raw, c.ttl)
	}
	return key, nil
}

// Fetch 透传 - 不缓存对象数据
// 原因：归档文件可能很大，Redis 内存宝贵，只缓存存在性性价比最高
func (c *CachedBackend) Fetch(ctx context.Context, key, destDir, fileName string) (string, error) {
	return c.backend.Fetch(ctx, key, destDir, fileName)
}

// IssueURL 透传 - 签名 URL 带着时钟，缓存它只会返回快过期的链接
func (c *CachedBackend) IssueURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	return c.backend.IssueURL(ctx, key, opts)
}
