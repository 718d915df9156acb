// Package archive 是对外的公共契约
// 调用方只跟 Archive 打交道：归档文件拿 Hash，用 Hash 取回文件或签 URL
package archive

import (
	"context"
	"fmt"
	"os"
	"time"

	"filevault/pkg/core"
	"filevault/pkg/localcache"
	"filevault/pkg/storage"
	"filevault/pkg/types"

	"github.com/rs/zerolog"
)

// DefaultFileName 是调用方没给文件名时的缺省值
const DefaultFileName = "data"

// Archive 组合了 Backend + ContentHasher
// 一个 Archive 实例可以被任意多个 goroutine 共享：
// Backend 句柄是长生命周期的，所有网络操作的一致性由远端存储自己保证
//
// 本地缓存刻意不放在这里——LocalCache 是每个调用上下文私有的，
// 由调用方构造并显式传入 LoadFile/CleanupFile (依赖注入，而不是 ambient state)
type Archive struct {
	backend storage.Backend
	hasher  core.Hasher
	urlTTL  time.Duration
	log     zerolog.Logger
}

type Option func(*Archive)

// WithHasher 替换默认的 SHA-256 hasher (测试用)
func WithHasher(h core.Hasher) Option {
	return func(a *Archive) { a.hasher = h }
}

// WithLogger 注入观测日志 (backend-init / dedup-skip / fetch-miss / cleanup)
func WithLogger(log zerolog.Logger) Option {
	return func(a *Archive) { a.log = log }
}

// WithURLTTL 覆盖签名 URL 的有效期
func WithURLTTL(ttl time.Duration) Option {
	return func(a *Archive) { a.urlTTL = ttl }
}

func New(backend storage.Backend, opts ...Option) *Archive {
	a := &Archive{
		backend: backend,
		hasher:  core.SHA256Hasher{},
		urlTTL:  storage.DefaultURLTTL,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveFile 归档本地文件，返回它的 ContentHash
// hash 可以预先算好传进来 (比如上传方已经算过)，传零值则这里自己算
// 成功返回时远端对象一定存在
func (a *Archive) ArchiveFile(ctx context.Context, path string, hash types.Hash) (types.Hash, error) {
	if hash.IsZero() {
		computed, err := a.hasher.ChecksumFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", storage.ErrSourceNotFound, path)
			}
			return "", err
		}
		hash = computed
	}

	if _, err := a.backend.Store(ctx, path, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// LoadFile 把 hash 对应的对象下载到调用方的本地缓存里，返回本地路径
// 对象不存在返回 ("", nil)——读路径上“不存在”是正常取值，不是错误
// (对比: 传输故障是硬错误，原样上抛)
func (a *Archive) LoadFile(ctx context.Context, cache *localcache.Cache, hash types.Hash, fileName string) (string, error) {
	key, err := a.backend.Locate(ctx, hash)
	if err != nil {
		return "", err
	}
	if key == "" {
		a.log.Debug().Str("event", "fetch-miss").Str("hash", hash.String()).Msg("no object for hash")
		return "", nil
	}

	dir, err := cache.Materialize(hash)
	if err != nil {
		return "", err
	}

	return a.backend.Fetch(ctx, key, dir, SafeFilename(fileName, DefaultFileName))
}

// CleanupFile 删除本地缓存副本
// 容忍零值 Hash (no-op)；非零但非法的 Hash 直接拒绝——
// 这个值会被拼进文件系统路径，不能让 ".." 这类输入走到删除逻辑。
// 永远不碰远端对象。
func (a *Archive) CleanupFile(cache *localcache.Cache, hash types.Hash) error {
	if hash.IsZero() {
		return nil
	}
	if !hash.IsValid() {
		return fmt.Errorf("%w: %q", storage.ErrInvalidHash, hash)
	}
	a.log.Debug().Str("event", "cleanup").Str("hash", hash.String()).Msg("dropping local copy")
	return cache.Cleanup(hash)
}

// GenerateURL 为对象签发限时公开访问 URL
// 对象不存在返回 ("", nil)，语义与 LoadFile 一致
func (a *Archive) GenerateURL(ctx context.Context, hash types.Hash, fileName, mimeType string) (string, error) {
	key, err := a.backend.Locate(ctx, hash)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", nil
	}

	return a.backend.IssueURL(ctx, key, storage.URLOptions{
		FileName: fileName,
		MimeType: mimeType,
		TTL:      a.urlTTL,
	})
}
