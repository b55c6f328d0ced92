package main

import (
	"fmt"
	"text/tabwriter"

	"achparse/pkg/schema"
)

// SchemaCmd 打印字段布局（0 起始、半开区间）。
type SchemaCmd struct {
	Code string `arg:"" optional:"" help:"记录类型码（1 5 6 7 8 9）；缺省打印全部"`
}

func (c *SchemaCmd) Run(env *appEnv) error {
	if err := schema.Validate(); err != nil {
		return &exitError{code: exitRun, err: fmt.Errorf("布局表自检失败: %w", err)}
	}
	codes := schema.Codes()
	if c.Code != "" {
		if len(c.Code) != 1 {
			return &exitError{code: exitConfig, err: fmt.Errorf("记录类型码应为单个字符: %q", c.Code)}
		}
		if _, ok := schema.Lookup(c.Code[0]); !ok {
			return &exitError{code: exitConfig, err: fmt.Errorf("未登记的记录类型码: %q", c.Code)}
		}
		codes = []byte{c.Code[0]}
	}
	tw := tabwriter.NewWriter(env.stdout, 0, 4, 2, ' ', 0)
	for i, code := range codes {
		s, _ := schema.Lookup(code)
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "[%c] %s\n", s.Code, s.Name)
		fmt.Fprintln(tw, "field\tstart\tend\twidth\tkind")
		for _, f := range s.Fields {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", f.Name, f.Start, f.End, f.Width(), f.Kind)
		}
	}
	return tw.Flush()
}
