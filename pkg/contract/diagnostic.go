package contract

import (
	"fmt"
	"strconv"
)

// Category: 诊断的机器稳定分类。
type Category string

const (
	CategoryLength      Category = "length"
	CategoryStructural  Category = "structural"
	CategoryAssociation Category = "association"
	CategoryUnknownType Category = "unknown_record_type"
	CategoryRead        Category = "read"
	CategoryEmpty       Category = "empty"
)

// Diagnostic: 单条诊断（行号 + 分类 + 可读细节）。
// Line 为 1 起始的物理行号；0 表示与具体行无关（如读取失败、空内容）。
type Diagnostic struct {
	Line     int
	Category Category
	Detail   string
}

// String 形如 "line 3: structural: entry outside batch"。
func (d Diagnostic) String() string {
	if d.Line <= 0 {
		return string(d.Category) + ": " + d.Detail
	}
	return "line " + strconv.Itoa(d.Line) + ": " + string(d.Category) + ": " + d.Detail
}

// MarshalText 使诊断在 JSON 中以字符串呈现。
func (d Diagnostic) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Collector: 只追加的诊断汇集器。
// 约束：
//  1. 从不失败、从不中断解析；
//  2. 保持追加顺序；
//  3. 单次解析内由规范化、解码、装配共享同一实例。
type Collector struct {
	items []Diagnostic
}

// NewCollector 创建空汇集器。
func NewCollector() *Collector { return &Collector{items: []Diagnostic{}} }

// Add 追加一条诊断；nil 接收者为 no-op。
func (c *Collector) Add(line int, cat Category, format string, args ...any) {
	if c == nil {
		return
	}
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	c.items = append(c.items, Diagnostic{Line: line, Category: cat, Detail: detail})
}

// Len 返回当前条数。
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items 返回诊断副本（调用方修改不影响汇集器）。
func (c *Collector) Items() []Diagnostic {
	if c == nil {
		return []Diagnostic{}
	}
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// CountBy 按分类统计诊断条数。
func CountBy(ds []Diagnostic) map[Category]int {
	out := map[Category]int{}
	for _, d := range ds {
		out[d.Category]++
	}
	return out
}
