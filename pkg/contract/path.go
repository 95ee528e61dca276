package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
// - http(s) URL 原样保留（仅去首尾空白）
func NormalizeFileID(p string) FileID {
	if IsURL(p) {
		return FileID(strings.TrimSpace(p))
	}
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}

// IsURL 判断 root 是否为 http(s) URL（大小写不敏感的 scheme 前缀）。
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < len("http://") {
		return false
	}
	l := strings.ToLower(s[:min(len(s), len("https://"))])
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
