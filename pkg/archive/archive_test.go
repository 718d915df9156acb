package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"filevault/pkg/core"
	"filevault/pkg/localcache"
	"filevault/pkg/storage"
	"filevault/pkg/storage/disk"
	"filevault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend 包装真实后端，统计 Store 实际执行的次数
// (去重命中时底层 Store 内部会跳过上传，所以这里数的是“进入 Store 的调用”，
// 幂等断言用第二层：两次 ArchiveFile 后远端只有一份数据)
type countingBackend struct {
	storage.Backend
	storeCalls  int32
	uploadCalls int32
}

func (c *countingBackend) Store(ctx context.Context, localPath string, hash types.Hash) (string, error) {
	atomic.AddInt32(&c.storeCalls, 1)
	// 上传是否真的发生，用 Locate 区分
	if key, err := c.Backend.Locate(ctx, hash); err != nil || key == "" {
		atomic.AddInt32(&c.uploadCalls, 1)
	}
	return c.Backend.Store(ctx, localPath, hash)
}

func newTestArchive(t *testing.T) (*Archive, *countingBackend) {
	t.Helper()
	backend, err := disk.NewAdapter(disk.Config{
		Root:    filepath.Join(t.TempDir(), "objects"),
		BaseURL: "http://files.internal",
		Secret:  "test-secret",
	})
	require.NoError(t, err)

	counting := &countingBackend{Backend: backend}
	return New(counting), counting
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestArchive_IdempotentArchiving(t *testing.T) {
	arch, counting := newTestArchive(t)
	ctx := context.Background()

	path := writeFile(t, "input.bin", []byte("idempotent payload"))

	h1, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)
	assert.True(t, h1.IsValid())

	h2, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// 两次归档，至多一次真实上传
	assert.Equal(t, int32(2), atomic.LoadInt32(&counting.storeCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&counting.uploadCalls), "identical content must be uploaded at most once")
}

func TestArchive_ContentAddressing(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()

	// 字节相同、文件名不同 -> 同一个 Hash
	p1 := writeFile(t, "report-v1.pdf", []byte("identical bytes"))
	p2 := writeFile(t, "totally-different-name.dat", []byte("identical bytes"))

	h1, err := arch.ArchiveFile(ctx, p1, "")
	require.NoError(t, err)
	h2, err := arch.ArchiveFile(ctx, p2, "")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestArchive_PrecomputedHash(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()

	content := []byte("precomputed")
	path := writeFile(t, "x.bin", content)
	precomputed := core.ChecksumBytes(content)

	got, err := arch.ArchiveFile(ctx, path, precomputed)
	require.NoError(t, err)
	assert.Equal(t, precomputed, got)
}

func TestArchive_ArchiveMissingSource(t *testing.T) {
	arch, _ := newTestArchive(t)

	_, err := arch.ArchiveFile(context.Background(), filepath.Join(t.TempDir(), "ghost"), "")
	assert.ErrorIs(t, err, storage.ErrSourceNotFound)
}

func TestArchive_RoundTrip(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()
	cache := localcache.New("fvtest")
	defer cache.Remove()

	content := []byte("0123456789") // 10 字节样例
	path := writeFile(t, "orig.bin", content)

	hash, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)

	// 指定首选文件名
	localPath, err := arch.LoadFile(ctx, cache, hash, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", filepath.Base(localPath))

	got, err := os.ReadFile(localPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// 不给文件名时落到缺省名
	defaultPath, err := arch.LoadFile(ctx, cache, hash, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultFileName, filepath.Base(defaultPath))
}

func TestArchive_Absence(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()
	cache := localcache.New("fvtest")
	defer cache.Remove()

	never := types.Hash(strings.Repeat("c", 64))

	// 读路径上“不存在”是正常取值，不是错误
	localPath, err := arch.LoadFile(ctx, cache, never, "x")
	require.NoError(t, err)
	assert.Empty(t, localPath)

	url, err := arch.GenerateURL(ctx, never, "", "")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestArchive_GenerateURL(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()

	path := writeFile(t, "doc.bin", []byte("0123456789"))
	hash, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)

	url, err := arch.GenerateURL(ctx, hash, "report.pdf", "application/pdf")
	require.NoError(t, err)

	key, err := storage.DeriveKey(hash)
	require.NoError(t, err)
	assert.Contains(t, url, key, "URL must carry the key path")
	assert.Contains(t, url, "expires=", "URL must carry an expiry parameter")
}

func TestArchive_Cleanup(t *testing.T) {
	arch, _ := newTestArchive(t)
	ctx := context.Background()
	cache := localcache.New("fvtest")
	defer cache.Remove()

	path := writeFile(t, "c.bin", []byte("cleanup me"))
	hash, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)

	localPath, err := arch.LoadFile(ctx, cache, hash, "")
	require.NoError(t, err)
	assert.FileExists(t, localPath)

	require.NoError(t, arch.CleanupFile(cache, hash))
	assert.NoFileExists(t, localPath)

	// 幂等 + 容忍零值
	assert.NoError(t, arch.CleanupFile(cache, hash))
	assert.NoError(t, arch.CleanupFile(cache, ""))

	// 非零但非法的 Hash 必须拒绝，绝不能拼进删除路径
	assert.ErrorIs(t, arch.CleanupFile(cache, ".."), storage.ErrInvalidHash)
	assert.ErrorIs(t, arch.CleanupFile(cache, "not-a-hash"), storage.ErrInvalidHash)

	// 清理只影响本地副本，远端对象还在
	again, err := arch.LoadFile(ctx, cache, hash, "")
	require.NoError(t, err)
	assert.FileExists(t, again)
}

func TestArchive_CacheIsolation(t *testing.T) {
	// 两个并发调用上下文加载同一个 Hash，各自拿到独立可清理的副本
	arch, _ := newTestArchive(t)
	ctx := context.Background()

	path := writeFile(t, "shared.bin", []byte("shared across contexts"))
	hash, err := arch.ArchiveFile(ctx, path, "")
	require.NoError(t, err)

	paths := make([]string, 2)
	caches := []*localcache.Cache{localcache.New("fvtest"), localcache.New("fvtest")}
	defer caches[0].Remove()
	defer caches[1].Remove()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := arch.LoadFile(ctx, caches[i], hash, "data")
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, paths[0], paths[1])
	assert.FileExists(t, paths[0])
	assert.FileExists(t, paths[1])

	// 一个上下文的 cleanup 不影响另一个
	require.NoError(t, arch.CleanupFile(caches[0], hash))
	assert.NoFileExists(t, paths[0])
	assert.FileExists(t, paths[1])
}
