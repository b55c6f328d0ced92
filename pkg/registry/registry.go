package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"achparse/pkg/contract"
	rfs "achparse/plugins/reader/filesystem"
	rjson "achparse/plugins/render/json"
	rtext "achparse/plugins/render/text"
	rxlsx "achparse/plugins/render/xlsx"
	ssql "achparse/plugins/store/sqlite"
	wfs "achparse/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewRenderer 工厂签名：接收原样 JSON Options。
type NewRenderer func(raw json.RawMessage) (contract.Renderer, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewStore 工厂签名：打开存储可能涉及 I/O，因此接收 ctx。
type NewStore func(ctx context.Context, raw json.RawMessage) (contract.Store, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader（.xz 透明解压）
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Renderer 工厂注册表。
var Renderer = map[string]NewRenderer{
	"json": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rjson.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rjson.New(&opts)
	},
	"text": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rtext.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rtext.New(&opts), nil
	},
	"xlsx": func(raw json.RawMessage) (contract.Renderer, error) {
		var opts rxlsx.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rxlsx.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（output_dir 为 "-" 时写标准输出）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Store 工厂注册表。"none" 表示不持久化（由装配层处理，不在此注册）。
var Store = map[string]NewStore{
	"sqlite": func(ctx context.Context, raw json.RawMessage) (contract.Store, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.Open(ctx, &opts)
	},
}

// Names 返回注册表中的名称（升序），用于校验错误提示与 CLI 帮助。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
