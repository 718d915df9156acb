package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"filevault/pkg/types"
)

// Hasher 是内容指纹计算器的抽象
// Archive 通过它计算 ContentHash，测试里可以替换为固定实现
type Hasher interface {
	ChecksumFile(path string) (types.Hash, error)
}

// SHA256Hasher 是默认实现
type SHA256Hasher struct{}

// ChecksumFile 流式计算文件内容的 SHA-256
// 注意：必须流式读取，不能 io.ReadAll
// 归档对象可能是几个 GB 的文件，一次性读进内存会直接 OOM
func (SHA256Hasher) ChecksumFile(path string) (types.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return types.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// ChecksumBytes 计算内存数据块的 Hash (主要供测试使用)
func ChecksumBytes(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}
