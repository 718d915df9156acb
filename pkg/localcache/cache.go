// Package localcache 给每个调用方 (goroutine/worker) 一块私有的落盘缓存区
//
// 布局: <root>/<hash>/<filename>
//
// Cache 句柄不跨调用上下文共享：每个逻辑调用方自己 New 一个，
// 这样不同调用方下载同一个对象也不会互相覆盖，也不需要任何跨上下文加锁。
// 条目不会按大小或年龄自动淘汰——什么时候不再需要本地副本，只有调用方知道。
package localcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"filevault/pkg/types"
)

type Cache struct {
	prefix string
	fixed  string // 非空时使用固定根目录 (CLI 跨进程复用)

	mu   sync.Mutex
	root string // 懒创建，首次 Materialize 时才建
}

// New 创建一个缓存句柄，不做任何磁盘操作
// prefix 用作临时目录前缀，方便在 /tmp 里分辨来源
func New(prefix string) *Cache {
	return &Cache{prefix: prefix}
}

// NewAt 创建一个固定根目录的缓存句柄
// 给 CLI 这类短命进程用：下载和清理发生在不同的进程里，
// 临时目录活不过一次调用，固定目录可以
func NewAt(root string) *Cache {
	return &Cache{fixed: root}
}

// ensureRoot 懒创建私有根目录
// 同一个句柄可能被同一调用上下文并发使用 (重入代码路径)，
// 所以根目录的创建必须加锁：否则两个并发 Materialize 会各赢一次
// MkdirTemp，拿到两个不同的根
func (c *Cache) ensureRoot() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.root != "" {
		return c.root, nil
	}
	if c.fixed != "" {
		if err := os.MkdirAll(c.fixed, 0755); err != nil {
			return "", fmt.Errorf("failed to create cache root: %w", err)
		}
		c.root = c.fixed
		return c.root, nil
	}
	dir, err := os.MkdirTemp("", c.prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create cache root: %w", err)
	}
	c.root = dir
	return dir, nil
}

// Materialize 返回 hash 对应的缓存目录，必要时创建
// MkdirAll 天然满足 create-if-absent 语义：目录已存在是成功，
// 其他错误 (权限、磁盘满) 原样上抛——绝不能学“忽略一切错误”的写法
func (c *Cache) Materialize(hash types.Hash) (string, error) {
	if !hash.IsValid() {
		return "", fmt.Errorf("cannot materialize invalid hash %q", hash)
	}
	root, err := c.ensureRoot()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(root, hash.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// rootDir 返回当前生效的根目录，还没有时返回空串
// 固定根目录的句柄即使本进程还没 Materialize 过，也要能清理上次进程的残留
func (c *Cache) rootDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.root != "" {
		return c.root
	}
	return c.fixed
}

// Cleanup 递归删除 hash 的缓存目录
// 幂等：目录不存在是 no-op。永远不碰远端存储。
// 零值是容忍的 no-op；非零但非法的 Hash 必须报错——
// ".." 这类输入 Join 出来会落在根目录之外，RemoveAll 它等于删库
func (c *Cache) Cleanup(hash types.Hash) error {
	if hash.IsZero() {
		return nil
	}
	if !hash.IsValid() {
		return fmt.Errorf("cannot cleanup invalid hash %q", hash)
	}
	root := c.rootDir()
	if root == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(root, hash.String()))
}

// Remove 销毁整个缓存根目录 (调用方 teardown 时用，best-effort)
func (c *Cache) Remove() error {
	root := c.rootDir()
	if root == "" {
		return nil
	}
	err := os.RemoveAll(root)
	c.mu.Lock()
	c.root = ""
	c.mu.Unlock()
	return err
}
