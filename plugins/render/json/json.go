// Package json 将解析结果渲染为 snake_case JSON 树。
package json

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"fmt"
	"io"
	"strings"

	"achparse/pkg/contract"
)

// Options: JSON 渲染选项。
type Options struct {
	// Indent: 缩进空格数；nil 默认 4，0 表示紧凑单行。
	Indent *int `json:"indent,omitempty"`
	// Envelope: 为 true 时输出 {"source":{...},"result":{...}}。
	Envelope bool `json:"envelope"`
}

// Renderer 实现 contract.Renderer。
type Renderer struct {
	indent   string
	envelope bool
}

// New 创建 JSON 渲染器。
func New(opts *Options) (*Renderer, error) {
	n := 4
	if opts != nil && opts.Indent != nil {
		n = *opts.Indent
	}
	if n < 0 || n > 16 {
		return nil, fmt.Errorf("%w: json indent %d out of range [0,16]", contract.ErrConfig, n)
	}
	r := &Renderer{indent: strings.Repeat(" ", n)}
	if opts != nil {
		r.envelope = opts.Envelope
	}
	return r, nil
}

var _ contract.Renderer = (*Renderer)(nil)

func (*Renderer) Ext() string { return ".json" }

// Render 输出结果树；诊断以字符串数组呈现，非 HTML 转义。
func (r *Renderer) Render(ctx context.Context, doc contract.Document) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := doc.Result
	if res == nil {
		res = contract.NewParseResult()
	}
	var v any = res
	if r.envelope {
		v = struct {
			Source contract.Source       `json:"source"`
			Result *contract.ParseResult `json:"result"`
		}{doc.Source, res}
	}
	var buf bytes.Buffer
	enc := stdjson.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if r.indent != "" {
		enc.SetIndent("", r.indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: json: %v", contract.ErrRender, err)
	}
	return &buf, nil
}
