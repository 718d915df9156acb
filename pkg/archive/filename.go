package archive

import (
	"path/filepath"
	"strings"
)

// SafeFilename 把调用方给的文件名清洗成可以安全落盘的名字
// 规则：
//  1. 去掉路径部分，只保留 basename (防目录穿越)
//  2. 控制字符和分隔符替换为下划线
//  3. 清洗后为空 (或只剩 "." / "..") 时返回 fallback
func SafeFilename(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|' || r == 0:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.Trim(b.String(), " .")
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
