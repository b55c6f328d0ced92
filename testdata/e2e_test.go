package testdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "achparse/internal/config"
	"achparse/internal/diag"
	"achparse/internal/pipeline"
	"achparse/pkg/contract"
	ssql "achparse/plugins/store/sqlite"
)

// parsed 为 JSON 产物中测试关心的子集。
type parsed struct {
	FileHeader *struct {
		ImmediateOriginName string `json:"immediate_origin_name"`
	} `json:"file_header"`
	Batches []struct {
		CompanyName string `json:"company_name"`
		Entries     []struct {
			Amount      json.RawMessage `json:"amount"`
			TraceNumber string          `json:"trace_number"`
			Addenda     []struct {
				PaymentRelatedInformation string `json:"payment_related_information"`
			} `json:"addenda"`
		} `json:"entries"`
		BatchControl *struct {
			BatchNumber string `json:"batch_number"`
		} `json:"batch_control"`
	} `json:"batches"`
	FileControl  json.RawMessage `json:"file_control"`
	Errors       []string        `json:"errors"`
	OtherRecords []struct {
		Kind string `json:"kind"`
	} `json:"other_records"`
}

func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Concurrency = 2
	cfg.Logging.Level = "error"
	cfg.Logging.Dir = ""
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q,"atomic":false,"flat":true}`, outDir))
	return cfg
}

func runPipeline(t *testing.T, cfg cfgpkg.Config) (diag.Snapshot, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(context.Background(), cfg)
	if err != nil {
		return diag.Snapshot{}, err
	}
	if comp.Store != nil {
		defer comp.Store.Close()
	}
	return pipeline.Run(context.Background(), comp, set, nil)
}

func readParsed(t *testing.T, path string) parsed {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取产物失败: %v", err)
	}
	var p parsed
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatalf("产物不是合法 JSON: %v", err)
	}
	return p
}

func TestE2EPayroll(t *testing.T) {
	outDir := t.TempDir()
	snap, err := runPipeline(t, baseConfig(filepath.Join("files", "payroll.ach"), outDir))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if snap.FilesOK != 1 || snap.Entries != 4 || snap.Total() != 0 {
		t.Fatalf("统计不符: %+v", snap)
	}
	p := readParsed(t, filepath.Join(outDir, "payroll.ach.json"))
	if p.FileHeader == nil || p.FileHeader.ImmediateOriginName != "ORIGIN CO" {
		t.Fatalf("文件头不符: %+v", p.FileHeader)
	}
	if len(p.Batches) != 2 {
		t.Fatalf("批数应为 2，实际 %d", len(p.Batches))
	}
	b := p.Batches[1]
	if b.CompanyName != "COMPANY 2" || b.BatchControl == nil || b.BatchControl.BatchNumber != "0000002" {
		t.Fatalf("第二批不符: %+v", b)
	}
	if len(b.Entries) != 2 || string(b.Entries[0].Amount) != "300" || b.Entries[0].TraceNumber != "123456780000003" {
		t.Fatalf("明细不符: %+v", b.Entries)
	}
	if len(b.Entries[1].Addenda) != 1 || b.Entries[1].Addenda[0].PaymentRelatedInformation != "INFO 4/1" {
		t.Fatalf("附加记录不符: %+v", b.Entries[1].Addenda)
	}
	if string(p.FileControl) == "null" || len(p.Errors) != 0 {
		t.Fatalf("文件控制或诊断不符: control=%s errors=%v", p.FileControl, p.Errors)
	}
	// 1 + 2*(1+4+1) + 1 = 14 行，补足 20 行需要 6 行填充
	if len(p.OtherRecords) != 6 || p.OtherRecords[0].Kind != "filler" {
		t.Fatalf("填充记录不符: %+v", p.OtherRecords)
	}
}

func TestE2EBroken(t *testing.T) {
	outDir := t.TempDir()
	snap, err := runPipeline(t, baseConfig(filepath.Join("files", "broken.ach"), outDir))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	want := map[contract.Category]int{
		contract.CategoryStructural:  3,
		contract.CategoryUnknownType: 1,
		contract.CategoryAssociation: 1,
	}
	for cat, n := range want {
		if snap.Diagnostics[cat] != n {
			t.Fatalf("%s 诊断数应为 %d，实际 %d", cat, n, snap.Diagnostics[cat])
		}
	}
	p := readParsed(t, filepath.Join(outDir, "broken.ach.json"))
	wantErrs := []string{
		"line 2: structural: entry outside batch",
		"line 6: unknown_record_type: unknown record type 'X'. Data: XUNEXPECTED",
		"line 7: structural: unexpected batch header, previous batch not closed",
		"line 10: structural: batch control outside batch context",
	}
	if len(p.Errors) != 5 {
		t.Fatalf("诊断条数应为 5，实际 %d: %v", len(p.Errors), p.Errors)
	}
	for i, w := range wantErrs {
		if p.Errors[i] != w {
			t.Fatalf("第 %d 条诊断不符\nwant: %s\ngot:  %s", i, w, p.Errors[i])
		}
	}
	if !strings.HasPrefix(p.Errors[4], "line 11: association: could not associate addenda with an entry. Addenda: 705ORPHAN") {
		t.Fatalf("关联诊断不符: %s", p.Errors[4])
	}
	if len(p.Batches) != 2 || p.Batches[0].BatchControl != nil || p.Batches[1].BatchControl == nil {
		t.Fatalf("批结构不符: %+v", p.Batches)
	}
	if len(p.Batches[0].Entries) != 1 || len(p.Batches[0].Entries[0].Addenda) != 1 {
		t.Fatalf("第一批明细不符: %+v", p.Batches[0].Entries)
	}
}

func TestE2ESampleLengths(t *testing.T) {
	outDir := t.TempDir()
	snap, err := runPipeline(t, baseConfig(filepath.Join("files", "sample.txt"), outDir))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	// 前 7 行长度均不为 94；末行全 '9' 填充不报长度
	if snap.Diagnostics[contract.CategoryLength] != 7 || snap.Total() != 7 {
		t.Fatalf("长度诊断不符: %+v", snap.Diagnostics)
	}
	p := readParsed(t, filepath.Join(outDir, "sample.txt.json"))
	if len(p.Errors) == 0 || !strings.HasPrefix(p.Errors[0], "line 1: length: expected 94 characters, got 126.") {
		t.Fatalf("首条诊断不符: %s", p.Errors[0])
	}
	if len(p.Batches) != 1 || len(p.Batches[0].Entries) != 2 || p.Batches[0].BatchControl == nil {
		t.Fatalf("批结构不符: %+v", p.Batches)
	}
	if len(p.Batches[0].Entries[0].Addenda) != 1 {
		t.Fatalf("附加记录应回退挂到最近明细: %+v", p.Batches[0].Entries)
	}
}

func TestE2EDirectory(t *testing.T) {
	outDir := t.TempDir()
	db := filepath.Join(t.TempDir(), "e2e.db")
	cfg := baseConfig("files", outDir)
	cfg.Components.Store = "sqlite"
	cfg.Options.Store = json.RawMessage(fmt.Sprintf(`{"path":%q,"replace":true}`, db))
	snap, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	if snap.FilesOK != 5 || snap.FilesFailed != 0 {
		t.Fatalf("文件统计不符: %+v", snap)
	}
	// payroll 4 + broken 2 + sample 2 + archive 3 + mainframe 2
	if snap.Entries != 13 || snap.Total() != 12 {
		t.Fatalf("明细或诊断统计不符: entries=%d diags=%d", snap.Entries, snap.Total())
	}
	for _, name := range []string{"payroll.ach.json", "broken.ach.json", "sample.txt.json", "archive.ach.json", "mainframe.lob.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("缺少产物 %s: %v", name, err)
		}
	}
	arch := readParsed(t, filepath.Join(outDir, "archive.ach.json"))
	if len(arch.Batches) != 1 || len(arch.Batches[0].Entries) != 3 {
		t.Fatalf("压缩输入解析不符: %+v", arch.Batches)
	}
	mf := readParsed(t, filepath.Join(outDir, "mainframe.lob.json"))
	if mf.FileHeader == nil || len(mf.Batches) != 1 || len(mf.Errors) != 0 {
		t.Fatalf("EBCDIC 输入解析不符: %+v", mf)
	}

	st, err := ssql.Open(context.Background(), &ssql.Options{Path: db})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	var files, entries, diags int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM files").Scan(&files); err != nil {
		t.Fatalf("query files: %v", err)
	}
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM entries").Scan(&entries); err != nil {
		t.Fatalf("query entries: %v", err)
	}
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM diagnostics").Scan(&diags); err != nil {
		t.Fatalf("query diagnostics: %v", err)
	}
	if files != 5 || entries != 13 || diags != 12 {
		t.Fatalf("存储计数不符: files=%d entries=%d diags=%d", files, entries, diags)
	}
	var enc string
	if err := st.DB().QueryRow("SELECT encoding FROM files WHERE file_id LIKE '%mainframe.lob'").Scan(&enc); err != nil {
		t.Fatalf("query encoding: %v", err)
	}
	if enc != "ebcdic" {
		t.Fatalf("编码应为 ebcdic，实际 %s", enc)
	}
}

func TestE2EConfigFile(t *testing.T) {
	cfg, err := cfgpkg.Load(filepath.Join("config", "basic.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg = cfgpkg.Merge(cfgpkg.Defaults(), cfg)
	cfg.Inputs = []string{"files"}
	outDir := t.TempDir()
	cfg.Options.Writer = json.RawMessage(fmt.Sprintf(`{"output_dir":%q}`, outDir))
	cfg.Logging.Level = "error"
	snap, err := runPipeline(t, cfg)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	// allow_exts 仅 .ach/.txt：mainframe.lob 被跳过
	if snap.FilesOK != 4 {
		t.Fatalf("文件数应为 4，实际 %d", snap.FilesOK)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "broken.ach.txt"))
	if err != nil {
		t.Fatalf("读取摘要失败: %v", err)
	}
	if !strings.Contains(string(b), "COMPANY 1") {
		t.Fatalf("摘要缺少批信息:\n%s", b)
	}
}
