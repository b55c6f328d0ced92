package text

import (
	"context"
	"io"
	"strings"
	"testing"

	"achparse/internal/fixture"
	"achparse/pkg/contract"
	"achparse/pkg/parser"
)

func render(t *testing.T, r *Renderer, doc contract.Document) string {
	t.Helper()
	rd, err := r.Render(context.Background(), doc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, _ := io.ReadAll(rd)
	return string(b)
}

func TestRenderSummary(t *testing.T) {
	res := parser.ParseLines(fixture.File(2, 3, 1))
	out := render(t, New(nil), contract.Document{
		Source: contract.Source{FileID: "pay.ach", Encoding: "ascii", Size: 1880},
		Result: res,
	})
	for _, want := range []string{
		"Source: pay.ach (ascii, 1880 bytes)",
		"File Origin: ORIGIN CO",
		"Number of batches: 2",
		"First batch company name: COMPANY 1",
		"Number of entries in first batch: 3",
		"First entry amount: 100 cents",
		"First entry addenda info: INFO 1/1",
		"Other records: ",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少 %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Errors encountered") {
		t.Fatalf("无诊断时不应输出错误段")
	}
}

func TestRenderErrorsAndBatches(t *testing.T) {
	res := parser.ParseLines([]string{
		fixture.BatchHeader("ACME", 1),
		fixture.BatchHeader("BETA", 2),
		"a", "b", "c",
	})
	out := render(t, New(&Options{Batches: true, MaxErrors: 2}), contract.Document{Result: res})
	if !strings.Contains(out, "Errors encountered during parsing (7):") {
		t.Fatalf("诊断计数错误:\n%s", out)
	}
	if !strings.Contains(out, "- ... 5 more") {
		t.Fatalf("应截断诊断:\n%s", out)
	}
	if !strings.Contains(out, "Batch 1 [0000001] ACME: 0 entries, 0 addenda, open") {
		t.Fatalf("批明细错误:\n%s", out)
	}
}

func TestRenderNilResult(t *testing.T) {
	if out := render(t, New(nil), contract.Document{}); strings.TrimSpace(out) != "" {
		t.Fatalf("空结果应输出空白: %q", out)
	}
}
