// Package hierarchy 将按序解码的记录折叠为 文件 -> 批 -> 明细 -> 附加记录 的层级树。
package hierarchy

import (
	"strings"
	"unicode/utf8"

	"achparse/pkg/contract"
	"achparse/pkg/schema"
)

// Assembler 是单次解析内的有状态折叠器。
// 约束：
//  1. 同一时刻至多一个打开的批（batch 非 nil 即打开）；
//  2. 明细只进入批，附加记录只挂到明细；
//  3. 各级列表保持文件顺序；文件头/文件控制为覆盖式单例；
//  4. 违例只追加诊断，从不中断折叠；
//  5. 实例不可跨解析复用，也不可并发使用。
type Assembler struct {
	res   *contract.ParseResult
	sink  *contract.Collector
	batch *contract.Batch
	entry *contract.Entry
}

var _ contract.Assembler = (*Assembler)(nil)

// New 创建装配器；sink 为 nil 时诊断被丢弃。
func New(sink *contract.Collector) *Assembler {
	return &Assembler{res: contract.NewParseResult(), sink: sink}
}

// Fold 吸收一条记录。line 提供行号与原始文本（用于诊断）。
func (a *Assembler) Fold(line contract.Line, rec contract.Record) {
	switch r := rec.(type) {
	case *contract.FileHeader:
		a.res.FileHeader = r
	case *contract.BatchHeader:
		if a.batch != nil {
			a.sink.Add(line.Number, contract.CategoryStructural, "unexpected batch header, previous batch not closed")
		}
		b := &contract.Batch{BatchHeader: *r, Entries: []*contract.Entry{}}
		a.res.Batches = append(a.res.Batches, b)
		a.batch, a.entry = b, nil
	case *contract.EntryDetail:
		if a.batch == nil {
			a.sink.Add(line.Number, contract.CategoryStructural, "entry outside batch")
			return
		}
		e := &contract.Entry{EntryDetail: *r, Addenda: []*contract.Addenda{}}
		a.batch.Entries = append(a.batch.Entries, e)
		a.entry = e
	case *contract.Addenda:
		a.attach(line, r)
	case *contract.BatchControl:
		if a.batch == nil {
			a.sink.Add(line.Number, contract.CategoryStructural, "batch control outside batch context")
			return
		}
		a.batch.BatchControl = r
		a.batch, a.entry = nil, nil
	case *contract.FileControl:
		if raw := strings.TrimSpace(r.RawLine); schema.IsFiller(raw) {
			a.other(contract.TagFiller, raw)
			return
		}
		a.res.FileControl = r
	case *contract.Other:
		a.other(r.Kind, r.RawLine)
		if r.Kind == contract.TagUnknown {
			a.sink.Add(line.Number, contract.CategoryUnknownType, "unknown record type '%s'. Data: %s", leading(line.Text, r.RawLine), r.RawLine)
		}
	}
}

// attach 按跟踪号后缀匹配挂接附加记录；不匹配时回退到当前批最后一条明细。
func (a *Assembler) attach(line contract.Line, ad *contract.Addenda) {
	seq := ad.EntryDetailSequenceNumber
	if a.entry != nil && seq != "" && strings.HasSuffix(a.entry.TraceNumber, seq) {
		a.entry.Addenda = append(a.entry.Addenda, ad)
		return
	}
	if a.batch != nil && len(a.batch.Entries) > 0 {
		last := a.batch.Entries[len(a.batch.Entries)-1]
		last.Addenda = append(last.Addenda, ad)
		return
	}
	a.sink.Add(line.Number, contract.CategoryAssociation, "could not associate addenda with an entry. Addenda: %s", strings.TrimSpace(ad.RawLine))
}

func (a *Assembler) other(kind contract.TypeTag, raw string) {
	a.res.OtherRecords = append(a.res.OtherRecords, contract.OtherRecord{
		Kind: kind,
		Data: contract.Other{Kind: kind, RawLine: raw},
	})
}

// Result 返回结果树；Errors 取自 sink 的当前快照。
func (a *Assembler) Result() *contract.ParseResult {
	a.res.Errors = a.sink.Items()
	return a.res
}

// leading 返回原始行首字符（记录类型码）。
func leading(text, trimmed string) string {
	if text == "" {
		text = trimmed
	}
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 {
		return ""
	}
	return string(r)
}
