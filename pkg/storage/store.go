package storage

import (
	"context"
	"errors"
	"time"

	"filevault/pkg/types"
)

// 统一的错误集合
// 所有后端都把自己的底层错误映射到这几个哨兵值，调用方用 errors.Is 判断
var (
	// ErrInvalidHash 表示传入的 Hash 格式非法 (长度/字符集不对)
	// 这是调用方的 Bug，不可重试
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrSourceNotFound 表示要归档的本地文件不存在
	ErrSourceNotFound = errors.New("source file not found")

	// ErrNotFound 表示 Key 在 Locate 和 Fetch/IssueURL 之间消失了
	// 这是硬错误，绝不能悄悄当作“对象不存在”处理
	// (对比: Locate 返回空 Key 是正常结果，不是错误)
	ErrNotFound = errors.New("object not found")

	// ErrUnavailable 表示传输/认证层故障，调用方可以自行退避重试
	// 本层不做内部重试
	ErrUnavailable = errors.New("backend unavailable")

	// ErrInit 表示后端构造 (Bucket 创建、目录准备) 失败，致命
	ErrInit = errors.New("backend init failed")
)

// DefaultURLTTL 是签名 URL 的默认有效期 (≈ 23.5h)
const DefaultURLTTL = 84600 * time.Second

// URLOptions 控制签名 URL 的响应头覆盖
type URLOptions struct {
	// FileName 非空时设置 inline Content-Disposition
	FileName string
	// MimeType 非空时覆盖 Content-Type
	MimeType string
	// TTL 为零时使用 DefaultURLTTL
	TTL time.Duration
}

// Backend 定义了存储后端的能力接口
// 实现可以是本地磁盘、对象存储，未来也可以是其他介质
// 实现必须可以被多个 goroutine 共享 (长生命周期，不要每次调用重建)
type Backend interface {
	// Locate 检查 hash 对应的对象是否已存在
	// 存在时返回它的 StorageKey，不存在返回 ("", nil) —— 不是错误
	// 实现必须是有界探测 (Head/Stat)，绝不能扫描整个存储
	Locate(ctx context.Context, hash types.Hash) (string, error)

	// Store 把 localPath 的内容上传到 hash 派生出的 Key 下
	// 去重：Locate 命中时直接跳过上传 (幂等，第二次调用是 no-op)
	Store(ctx context.Context, localPath string, hash types.Hash) (string, error)

	// Fetch 把 Key 对应的对象下载到 destDir/fileName 并返回本地路径
	// 必须先写临时文件再 Rename，失败时不能留下半截文件
	Fetch(ctx context.Context, key, destDir, fileName string) (string, error)

	// IssueURL 为 Key 签发一个限时只读 URL
	// URL 不持久化，每次调用重新计算
	IssueURL(ctx context.Context, key string, opts URLOptions) (string, error)
}
