package contract

import "errors"

// 协作方边界的最小错误分类。
// 核心解析从不返回 error；以下哨兵仅用于读取/解码/输出/持久化阶段。
var (
	// ErrRead: 输入源读取失败（文件缺失、解压失败等）。
	ErrRead = errors.New("read failed")
	// ErrEncoding: 源字节无法按指定编码转换为文本。
	ErrEncoding = errors.New("encoding invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrConfig: 配置或组件选项非法。
	ErrConfig = errors.New("config invalid")
	// ErrRender: 结果渲染失败。
	ErrRender = errors.New("render failed")
	// ErrStore: 结果持久化失败。
	ErrStore = errors.New("store failed")
)
