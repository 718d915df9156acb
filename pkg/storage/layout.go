package storage

import (
	"fmt"

	"filevault/pkg/types"
)

// DataFileName 是每个对象在 Key 下的固定文件名
// 布局契约: <prefix-derived-from-hash>/data 存原始字节，除此之外不持久化任何东西
const DataFileName = "data"

// DeriveKey 把 ContentHash 转换为 StorageKey (Sharding)
// Logic: "aabbcc..." -> "aa/bb/cc.../data"
// 前两级目录各取 2 个字符，避免单目录/单前缀的 fan-out 问题
// 完整 Hash 保留在 Key 里，所以 Key 和 Hash 一一对应，
// 存在性探测可以做精确 Key 检查，不需要前缀 List
func DeriveKey(hash types.Hash) (string, error) {
	if !hash.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	h := hash.String()
	return h[:2] + "/" + h[2:4] + "/" + h[4:] + "/" + DataFileName, nil
}
