package contract

import (
	"context"
	"io"
)

// Reader 逐个交付输入文件的字节流（文件、目录或 STDIN）。
// 约束：
//  1. 目录内按路径字典序回调；
//  2. FileID 已规范化为正斜杠形式；
//  3. 只拆容器（.xz），字符集与记录格式交给后续阶段；
//  4. 单 goroutine 回调，ReadCloser 由回调方关闭。
//
// 单个文件打不开时仍回调，错误延迟到首次 Read 暴露。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, r io.ReadCloser) error) error
}

// ArtifactID 标识一个渲染产物，形如 FileID + 渲染器扩展名。
type ArtifactID = FileID

// Writer 落盘渲染产物，字节原样写出。
// 同一 ArtifactID 只写一次；失败直接返回，不重试。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
