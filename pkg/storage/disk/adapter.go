package disk

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"filevault/pkg/storage"
	"filevault/pkg/types"

	"github.com/rs/zerolog"
)

// Adapter 实现了 storage.Backend 接口 (本地文件系统变体)
type Adapter struct {
	rootPath string // 比如: /var/lib/filevault/objects
	baseURL  string // 签名 URL 的前缀，比如 http://files.internal
	secret   []byte // HMAC 签名密钥
	now      func() time.Time
	log      zerolog.Logger
}

// Config 用于初始化 Adapter
type Config struct {
	Root    string
	BaseURL string
	// Secret 用于给 URL 做 HMAC-SHA256 签名
	// 校验签名是下载服务的事，这里只负责签发
	Secret string
	// Now 可注入固定时钟 (测试用)，nil 时用 time.Now
	Now    func() time.Time
	Logger *zerolog.Logger
}

// NewAdapter 创建一个新的磁盘存储后端
// 根目录在这里一次性准备好 (create-if-absent)，之后的操作不再管
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("%w: create root dir %s: %v", storage.ErrInit, cfg.Root, err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	a := &Adapter{
		rootPath: cfg.Root,
		baseURL:  cfg.BaseURL,
		secret:   []byte(cfg.Secret),
		now:      now,
		log:      log,
	}
	a.log.Info().Str("event", "backend-init").Str("root", cfg.Root).Msg("disk backend ready")
	return a, nil
}

// keyPath 把 StorageKey 翻译成物理路径
func (a *Adapter) keyPath(key string) string {
	return filepath.Join(a.rootPath, filepath.FromSlash(key))
}

// Locate 精确检查对象是否存在
// 找不到返回 ("", nil)，这是正常结果
func (a *Adapter) Locate(ctx context.Context, hash types.Hash) (string, error) {
	key, err := storage.DeriveKey(hash)
	if err != nil {
		return "", err
	}

	_, err = os.Stat(a.keyPath(key))
	if err == nil {
		return key, nil
	}
	if os.IsNotExist(err) {
		return "", nil
	}
	return "", fmt.Errorf("%w: stat %s: %v", storage.ErrUnavailable, key, err)
}

// Store 把本地文件写入 hash 派生出的 Key
func (a *Adapter) Store(ctx context.Context, localPath string, hash types.Hash) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrSourceNotFound, localPath)
		}
		return "", err
	}

	// 1. 幂等性检查 (去重)
	// 内容寻址的好处：相同的字节永远落在同一个 Key，已存在就什么都不用做
	key, err := a.Locate(ctx, hash)
	if err != nil {
		return "", err
	}
	if key != "" {
		a.log.Debug().Str("event", "dedup-skip").Str("hash", hash.String()).Msg("object already stored")
		return key, nil
	}

	key, err = storage.DeriveKey(hash)
	if err != nil {
		return "", err
	}
	targetPath := a.keyPath(key)

	// 2. 准备目录
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", fmt.Errorf("%w: mkdir for %s: %v", storage.ErrUnavailable, key, err)
	}

	// 3. 原子写入 (Atomic Write)
	// 先写临时文件再 Rename，保证要么没有文件，要么文件是完整的
	if err := copyAtomic(localPath, targetPath); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", storage.ErrUnavailable, key, err)
	}
	return key, nil
}

// Fetch 把对象复制到 destDir/fileName
func (a *Adapter) Fetch(ctx context.Context, key, destDir, fileName string) (string, error) {
	srcPath := a.keyPath(key)
	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			// Locate 和 Fetch 之间对象消失了：硬错误，不是“不存在”
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: stat %s: %v", storage.ErrUnavailable, key, err)
	}

	destPath := filepath.Join(destDir, fileName)
	if err := copyAtomic(srcPath, destPath); err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", storage.ErrUnavailable, key, err)
	}
	return destPath, nil
}

// IssueURL 签发限时只读 URL
// 格式: <base>/<key>?expires=<unix>&signature=<hmac>
// filename/mime 覆盖项作为查询参数带给下载服务
func (a *Adapter) IssueURL(ctx context.Context, key string, opts storage.URLOptions) (string, error) {
	if _, err := os.Stat(a.keyPath(key)); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: stat %s: %v", storage.ErrUnavailable, key, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = storage.DefaultURLTTL
	}
	expires := a.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", a.sign(key, expires))
	if opts.FileName != "" {
		q.Set("filename", opts.FileName)
	}
	if opts.MimeType != "" {
		q.Set("mime", opts.MimeType)
	}

	return a.baseURL + "/" + key + "?" + q.Encode(), nil
}

// sign 计算 HMAC-SHA256(secret, key + "\n" + expires)
func (a *Adapter) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// copyAtomic 把 src 复制到 dst：临时文件 + Rename
// 失败时清掉临时文件，绝不留半截数据
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "temp-*")
	if err != nil {
		return err
	}
	// 成功 Rename 之后这个删除会失效，无害
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	// 必须先关闭才能 Rename
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
