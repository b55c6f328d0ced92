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
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// ArtifactFor 由源 FileID 推导渲染产物 ID：去掉容器扩展名（.xz）后追加 ext。
// 例如 "in/pay.ach.xz" + ".json" => "in/pay.ach.json"。
func ArtifactFor(id FileID, ext string) ArtifactID {
	s := strings.TrimSuffix(string(id), ".xz")
	return ArtifactID(s + ext)
}
