// Package bulk 批量归档一棵目录树
// 单文件归档走 archive.ArchiveFile 就够了；目录归档需要遍历、
// 忽略规则和有界并发，所以单独拆一层
package bulk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"filevault/pkg/archive"
	"filevault/pkg/ignore"
	"filevault/pkg/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 是并发上传的默认上限
// 上传是网络密集型，开太多只会打爆连接池
const DefaultWorkers = 8

// Result 是单个文件的归档结果
type Result struct {
	Path string // 相对于归档根目录
	Hash types.Hash
	Size int64
}

type Archiver struct {
	arch    *archive.Archive
	workers int
	log     zerolog.Logger
}

type Option func(*Archiver)

// WithWorkers 覆盖并发度
func WithWorkers(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Archiver) { a.log = log }
}

func NewArchiver(arch *archive.Archive, opts ...Option) *Archiver {
	a := &Archiver{
		arch:    arch,
		workers: DefaultWorkers,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ArchiveDir 归档 dir 下所有未被忽略的文件，返回按路径排序的结果
// 任何一个文件失败就整体失败 (errgroup 会取消其余 worker 的 ctx)
// 注意去重是后端层面的：树里有多份相同内容时，只会有一次真实上传
func (a *Archiver) ArchiveDir(ctx context.Context, dir string) ([]Result, error) {
	matcher, err := ignore.NewMatcher(dir)
	if err != nil {
		return nil, err
	}

	// 1. 先收集文件清单 (遍历很快，上传才是瓶颈)
	var files []string
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err // 权限错误等
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if matcher.Matches(filepath.ToSlash(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, rel)
		return nil
	}
	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}

	// 2. 有界并发上传
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	var mu sync.Mutex
	results := make([]Result, 0, len(files))

	for _, rel := range files {
		rel := rel
		g.Go(func() error {
			full := filepath.Join(dir, rel)

			info, err := os.Stat(full)
			if err != nil {
				return err
			}

			hash, err := a.arch.ArchiveFile(gctx, full, "")
			if err != nil {
				return err
			}
			a.log.Debug().Str("path", rel).Str("hash", hash.String()).Msg("archived")

			mu.Lock()
			results = append(results, Result{Path: rel, Hash: hash, Size: info.Size()})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}
