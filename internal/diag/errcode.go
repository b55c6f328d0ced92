package diag

import (
	"context"
	"errors"
	"os"

	"achparse/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/计数汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeIO        Code = "io"
	CodeEncoding  Code = "encoding"
	CodeConfig    Code = "config"
	CodeRender    Code = "render"
	CodeStore     Code = "store"
	CodeCancel    Code = "cancel"
	CodeInvariant Code = "invariant"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrConfig):
		return CodeConfig
	case errors.Is(err, contract.ErrEncoding):
		return CodeEncoding
	case errors.Is(err, contract.ErrRender):
		return CodeRender
	case errors.Is(err, contract.ErrStore):
		return CodeStore
	case errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	case errors.Is(err, contract.ErrRead):
		return CodeIO
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
