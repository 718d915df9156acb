// pkg/types/common.go
package types

// Hash 代表归档内容的唯一标识符 (SHA256 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool { return h == "" }

// IsValid 检查长度和字符集
// 只接受小写 hex：大写会派生出不同的 StorageKey，必须在入口拒绝
func (h Hash) IsValid() bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
