// Package text 将解析结果渲染为人类可读摘要。
package text

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"achparse/pkg/contract"
)

// Options: 摘要渲染选项。
type Options struct {
	// Batches: 为 true 时逐批列出公司、明细数、附加记录数与控制状态。
	Batches bool `json:"batches"`
	// MaxErrors: 最多列出的诊断条数；0 表示全部。
	MaxErrors int `json:"max_errors"`
}

// Renderer 实现 contract.Renderer。
type Renderer struct{ opts Options }

// New 创建摘要渲染器。
func New(opts *Options) *Renderer {
	r := &Renderer{}
	if opts != nil {
		r.opts = *opts
	}
	return r
}

var _ contract.Renderer = (*Renderer)(nil)

func (*Renderer) Ext() string { return ".txt" }

// Render 输出摘要：来源、诊断、文件来源名、批数、首批公司、首批明细数、首条金额、首条附加信息。
func (r *Renderer) Render(ctx context.Context, doc contract.Document) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := doc.Result
	if res == nil {
		res = contract.NewParseResult()
	}
	var b bytes.Buffer
	src := doc.Source
	if src.FileID != "" {
		fmt.Fprintf(&b, "Source: %s (%s, %d bytes)\n", src.FileID, src.Encoding, src.Size)
		if src.Digest != "" {
			fmt.Fprintf(&b, "BLAKE3: %s\n", src.Digest)
		}
	}
	if n := len(res.Errors); n > 0 {
		fmt.Fprintf(&b, "\nErrors encountered during parsing (%d):\n", n)
		for i, d := range res.Errors {
			if r.opts.MaxErrors > 0 && i >= r.opts.MaxErrors {
				fmt.Fprintf(&b, "- ... %d more\n", n-i)
				break
			}
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	b.WriteString("\n")
	if res.FileHeader != nil {
		fmt.Fprintf(&b, "File Origin: %s\n", res.FileHeader.ImmediateOriginName)
	}
	if len(res.Batches) > 0 {
		fmt.Fprintf(&b, "Number of batches: %d\n", len(res.Batches))
		first := res.Batches[0]
		fmt.Fprintf(&b, "First batch company name: %s\n", first.CompanyName)
		if len(first.Entries) > 0 {
			fmt.Fprintf(&b, "Number of entries in first batch: %d\n", len(first.Entries))
			e := first.Entries[0]
			fmt.Fprintf(&b, "First entry amount: %s cents\n", e.Amount)
			if len(e.Addenda) > 0 {
				fmt.Fprintf(&b, "First entry addenda info: %s\n", e.Addenda[0].PaymentRelatedInformation)
			}
		}
	}
	if r.opts.Batches {
		for i, bt := range res.Batches {
			addenda := 0
			for _, e := range bt.Entries {
				addenda += len(e.Addenda)
			}
			status := "closed"
			if bt.BatchControl == nil {
				status = "open"
			}
			fmt.Fprintf(&b, "Batch %d [%s] %s: %d entries, %d addenda, %s\n",
				i+1, bt.BatchNumber, bt.CompanyName, len(bt.Entries), addenda, status)
		}
	}
	if n := len(res.OtherRecords); n > 0 {
		fmt.Fprintf(&b, "Other records: %d\n", n)
	}
	return &b, nil
}
