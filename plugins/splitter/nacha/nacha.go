// Package nacha 将输入内容规范化为 1 起始编号的物理行序列，并做长度校验。
package nacha

import (
	"iter"
	"strings"
	"unicode/utf8"

	"achparse/pkg/contract"
	"achparse/pkg/schema"
)

// NormalizeText 规范化单个字符串。
// 约束：
//  1. 含换行符（\r\n、\n、\r）时按行拆分；
//  2. 不含换行符时按 94 字符窗口切块（恢复被剥离分隔符的记录边界）；
//  3. 空白行跳过且不报错，但仍占用行号；
//  4. 非空白行长度 != 94 且去空白后不全为 '9' 时记录长度诊断，行仍然产出；
//  5. 诊断在产出该行之前写入 sink，保证汇集器顺序即物理行序。
func NormalizeText(s string, sink *contract.Collector) iter.Seq[contract.Line] {
	if strings.ContainsAny(s, "\r\n") {
		return normalize(splitLines(s), sink)
	}
	return normalize(chunk(s, schema.RecordLength), sink)
}

// NormalizeLines 规范化已拆分的行序列：按原顺序编号，规则同上。
func NormalizeLines(ls []string, sink *contract.Collector) iter.Seq[contract.Line] {
	return normalize(ls, sink)
}

func normalize(ls []string, sink *contract.Collector) iter.Seq[contract.Line] {
	return func(yield func(contract.Line) bool) {
		for i, text := range ls {
			n := i + 1
			trimmed := strings.TrimSpace(text)
			if trimmed == "" {
				continue
			}
			if l := utf8.RuneCountInString(text); l != schema.RecordLength && !schema.IsFiller(trimmed) {
				sink.Add(n, contract.CategoryLength, "expected %d characters, got %d. Content: '%s'", schema.RecordLength, l, trimmed)
			}
			if !yield(contract.Line{Number: n, Text: text}) {
				return
			}
		}
	}
}

// splitLines 按 \r\n、\n、\r 拆分；末尾换行不产生额外空行。
func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			out = append(out, s[start:i])
			start = i + 1
		case '\r':
			out = append(out, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// chunk 按字符（非字节）切分为固定宽度窗口；最后一块可能更短。
func chunk(s string, width int) []string {
	if s == "" {
		return nil
	}
	rs := []rune(s)
	out := make([]string, 0, (len(rs)+width-1)/width)
	for i := 0; i < len(rs); i += width {
		end := i + width
		if end > len(rs) {
			end = len(rs)
		}
		out = append(out, string(rs[i:end]))
	}
	return out
}
