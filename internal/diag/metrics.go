package diag

import (
	"sort"
	"sync"

	"achparse/pkg/contract"
)

// Counters 汇总一次运行的文件与诊断计数。
// 约束：
//  1. 并发安全（pipeline 跨文件并行写入）；
//  2. 仅累加，不做重置；
//  3. nil 接收者为 no-op。
type Counters struct {
	mu      sync.Mutex
	ok      int
	failed  int
	entries int
	byCat   map[contract.Category]int
	byCode  map[Code]int
}

// NewCounters 创建空计数器。
func NewCounters() *Counters {
	return &Counters{byCat: map[contract.Category]int{}, byCode: map[Code]int{}}
}

// ObserveResult 记录一个已解析文件（结果可带诊断）。
func (c *Counters) ObserveResult(res *contract.ParseResult) {
	if c == nil || res == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok++
	c.entries += res.EntryCount()
	for cat, n := range contract.CountBy(res.Errors) {
		c.byCat[cat] += n
	}
}

// ObserveError 记录一个失败文件（协作方错误）。
func (c *Counters) ObserveError(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
	c.byCode[Classify(err)]++
}

// Snapshot 为计数快照。
type Snapshot struct {
	FilesOK     int
	FilesFailed int
	Entries     int
	Diagnostics map[contract.Category]int
	Errors      map[Code]int
}

// Total 返回诊断总数。
func (s Snapshot) Total() int {
	n := 0
	for _, v := range s.Diagnostics {
		n += v
	}
	return n
}

// Categories 返回有计数的分类（字典序）。
func (s Snapshot) Categories() []contract.Category {
	out := make([]contract.Category, 0, len(s.Diagnostics))
	for k := range s.Diagnostics {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot 返回当前计数的副本。
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{Diagnostics: map[contract.Category]int{}, Errors: map[Code]int{}}
	if c == nil {
		return s
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s.FilesOK, s.FilesFailed, s.Entries = c.ok, c.failed, c.entries
	for k, v := range c.byCat {
		s.Diagnostics[k] = v
	}
	for k, v := range c.byCode {
		s.Errors[k] = v
	}
	return s
}
