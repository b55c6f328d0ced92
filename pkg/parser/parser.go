// Package parser 是解码核心的入口：规范化 -> 逐行解码 -> 层级装配。
// 纯内存、同步、单遍；每次调用使用独立的汇集器与装配器，调用之间不共享状态。
package parser

import (
	"iter"
	"strings"

	"achparse/pkg/contract"
	"achparse/plugins/assembler/hierarchy"
	"achparse/plugins/decoder/nacha"
	splitter "achparse/plugins/splitter/nacha"
)

const emptyDetail = "content is empty or contains only whitespace"

// Parser 组合规范化、解码与装配。零值可用（使用默认解码器）。
// 同一 Parser 可被多个 goroutine 并发调用，只要 Decoder 本身无状态。
type Parser struct {
	Decoder contract.Decoder
}

// New 创建解析器；dec 为 nil 时使用默认 NACHA 解码器。
func New(dec contract.Decoder) *Parser {
	return &Parser{Decoder: dec}
}

// ParseContent 解析单个字符串（可含或不含换行）。
func ParseContent(content string) *contract.ParseResult {
	return (&Parser{}).ParseContent(content)
}

// ParseLines 解析已拆分的行序列。
func ParseLines(lines []string) *contract.ParseResult {
	return (&Parser{}).ParseLines(lines)
}

// ParseContent 见包级 ParseContent。
func (p *Parser) ParseContent(content string) *contract.ParseResult {
	if strings.TrimSpace(content) == "" {
		return empty()
	}
	sink := contract.NewCollector()
	return p.fold(splitter.NormalizeText(content, sink), sink)
}

// ParseLines 见包级 ParseLines。
func (p *Parser) ParseLines(lines []string) *contract.ParseResult {
	blank := true
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			blank = false
			break
		}
	}
	if blank {
		return empty()
	}
	sink := contract.NewCollector()
	return p.fold(splitter.NormalizeLines(lines, sink), sink)
}

func (p *Parser) fold(lines iter.Seq[contract.Line], sink *contract.Collector) *contract.ParseResult {
	dec := p.Decoder
	if dec == nil {
		dec = nacha.New()
	}
	asm := hierarchy.New(sink)
	for ln := range lines {
		rec, ok := dec.Decode(ln.Text)
		if !ok {
			continue
		}
		asm.Fold(ln, rec)
	}
	return asm.Result()
}

// empty 返回仅含一条 empty 诊断的空结果。
func empty() *contract.ParseResult {
	sink := contract.NewCollector()
	sink.Add(0, contract.CategoryEmpty, emptyDetail)
	res := contract.NewParseResult()
	res.Errors = sink.Items()
	return res
}
