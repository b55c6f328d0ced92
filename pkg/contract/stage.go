package contract

import (
	"context"
	"io"
)

// Decoder: 将单个物理行解码为带标签的记录。
// 纯函数：无副作用、不记录诊断；仅当行为空时返回 ok=false。
// 未登记类型通过 TagFiller/TagUnknown 标签告知调用方。
type Decoder interface {
	Decode(raw string) (rec Record, ok bool)
}

// Assembler: 有状态的层级装配器，作用域为单次解析。
// 约束：
//  1. 单次前向遍历，不回溯、不重排；
//  2. 结构违例写入共享 Collector，不中断；
//  3. 实例不得跨解析复用。
type Assembler interface {
	Fold(line Line, rec Record)
	Result() *ParseResult
}

// Source: 输入源元信息（由协作方填充，核心不读取）。
type Source struct {
	FileID   FileID `json:"file_id"`
	Digest   string `json:"blake3"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// Document: 渲染/持久化阶段的输入载体。
type Document struct {
	Source Source
	Result *ParseResult
}

// Renderer: 将解析结果渲染为字节流。
// Ext 返回产物扩展名（含点，如 ".json"）。
type Renderer interface {
	Ext() string
	Render(ctx context.Context, doc Document) (io.Reader, error)
}

// Store: 将解析结果写入结构化存储（可选阶段）。
type Store interface {
	Save(ctx context.Context, doc Document) error
	Close() error
}
