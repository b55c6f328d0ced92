package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "achparse/internal/config"
	"achparse/internal/diag"
	"achparse/internal/fixture"
	"achparse/internal/pipeline"
	"achparse/pkg/contract"
	ssql "achparse/plugins/store/sqlite"
)

// quiet 关闭日志噪音（stderr）。
func quiet(t *testing.T) {
	t.Helper()
	t.Setenv("ACHPARSE_LOG_LEVEL", "error")
}

func runArgs(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func writeACH(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	code, out, _ := runArgs(t, "version")
	require.Equal(t, exitOK, code)
	require.Equal(t, "achparse dev\n", out)
}

func TestHelpExitsZero(t *testing.T) {
	code, out, _ := runArgs(t, "--help")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "init-config")
}

func TestUnknownFlag(t *testing.T) {
	code, _, errs := runArgs(t, "parse", "--bogus")
	require.Equal(t, exitConfig, code)
	require.Contains(t, errs, "参数解析失败")
}

func TestSchemaCommand(t *testing.T) {
	code, out, _ := runArgs(t, "schema")
	require.Equal(t, exitOK, code)
	for _, want := range []string{"[1] File Header", "[9] File Control", "trace_number", "amount"} {
		require.Contains(t, out, want)
	}

	code, out, _ = runArgs(t, "schema", "6")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "[6] Entry Detail")
	require.NotContains(t, out, "File Header")

	code, _, errs := runArgs(t, "schema", "4")
	require.Equal(t, exitConfig, code)
	require.Contains(t, errs, "未登记")
	code, _, _ = runArgs(t, "schema", "66")
	require.Equal(t, exitConfig, code)
}

// 端到端：目录输入 → JSON 产物
func TestParseWritesJSON(t *testing.T) {
	quiet(t)
	in, out := t.TempDir(), t.TempDir()
	writeACH(t, in, "payroll.ach", fixture.File(2, 2, 1))

	code, _, errs := runArgs(t, in, "--out", out, "--no-status")
	require.Equal(t, exitOK, code, errs)

	b, err := os.ReadFile(filepath.Join(out, "payroll.ach.json"))
	require.NoError(t, err)
	var tree struct {
		FileHeader struct {
			ImmediateOriginName string `json:"immediate_origin_name"`
		} `json:"file_header"`
		Batches []json.RawMessage `json:"batches"`
		Errors  []string          `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(b, &tree))
	require.Len(t, tree.Batches, 2)
	require.Empty(t, tree.Errors)
	require.Equal(t, "ORIGIN CO", strings.TrimSpace(tree.FileHeader.ImmediateOriginName))
}

func TestParseTextRendererAndStatus(t *testing.T) {
	quiet(t)
	in, out := t.TempDir(), t.TempDir()
	p := writeACH(t, in, "a.ach", fixture.File(1, 1, 1))

	code, _, errs := runArgs(t, "parse", p, "-r", "text", "-o", out)
	require.Equal(t, exitOK, code, errs)
	require.Contains(t, errs, "[run] 并发=1 | 输出=text")
	require.Contains(t, errs, "[ok] 全部完成")

	b, err := os.ReadFile(filepath.Join(out, "a.ach.txt"))
	require.NoError(t, err)
	require.Contains(t, string(b), "File Origin: ORIGIN CO")
}

// 诊断默认不影响退出码；--strict 时退出码 2
func TestStrictMode(t *testing.T) {
	quiet(t)
	in, out := t.TempDir(), t.TempDir()
	p := writeACH(t, in, "orphan.ach", []string{fixture.Entry(100, "X", fixture.Trace(1))})

	code, _, errs := runArgs(t, p, "-o", out, "--no-status")
	require.Equal(t, exitOK, code, errs)

	code, _, errs = runArgs(t, p, "-o", out, "--no-status", "--strict")
	require.Equal(t, exitStrict, code)
	require.Contains(t, errs, "1 diagnostics (structural=1)")
}

func TestConfigFailures(t *testing.T) {
	quiet(t)
	out := t.TempDir()
	cases := [][]string{
		{"--no-status", "-o", out},                                      // 无输入
		{"x.ach", "--encoding", "utf-16", "-o", out},                    // 未知编码
		{"x.ach", "-r", "csv", "-o", out},                               // 未注册渲染器
		{"--config", filepath.Join(out, "missing.json"), "x.ach"},       // 配置缺失
		{"-", "x.ach", "-o", out},                                       // '-' 混用
		{"x.ach", "-o", filepath.Join(writeACH(t, out, "f", nil), "d")}, // 输出目录不可创建
	}
	for _, args := range cases {
		code, _, errs := runArgs(t, args...)
		require.Equal(t, exitConfig, code, "%v: %s", args, errs)
	}
}

func TestPipelineErrorExitsOne(t *testing.T) {
	quiet(t)
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (diag.Snapshot, error) {
		return diag.Snapshot{}, errors.New("boom")
	}
	defer func() { pipelineRun = orig }()
	code, _, errs := runArgs(t, "x.ach", "-o", t.TempDir(), "--no-status")
	require.Equal(t, exitRun, code)
	require.Contains(t, errs, "运行失败: boom")
}

// CLI 覆盖优先于 ENV 与配置文件
func TestOverridePrecedence(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	cfg := cfgpkg.Config{
		Inputs:      []string{"from-file.ach"},
		Concurrency: 2,
		Components:  cfgpkg.Components{Renderer: "json"},
		Options:     cfgpkg.Options{Renderer: json.RawMessage(`{"indent":2}`)},
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(cfgPath, b, 0o644))
	t.Setenv("ACHPARSE_CONFIG_FILE", cfgPath)
	t.Setenv("ACHPARSE_CONCURRENCY", "5")

	var got pipeline.Settings
	var ext string
	orig := pipelineRun
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (diag.Snapshot, error) {
		got, ext = set, comp.Renderer.Ext()
		return diag.Snapshot{}, nil
	}
	defer func() { pipelineRun = orig }()

	code, _, errs := runArgs(t, "--no-status", "-o", dir)
	require.Equal(t, exitOK, code, errs)
	require.Equal(t, []string{"from-file.ach"}, got.Inputs)
	require.Equal(t, 5, got.Concurrency)
	require.Equal(t, ".json", ext)

	// 切换渲染器时丢弃 json 的 indent 选项
	code, _, errs = runArgs(t, "cli.ach", "-j", "7", "-r", "xlsx", "--no-status", "-o", dir)
	require.Equal(t, exitOK, code, errs)
	require.Equal(t, []string{"cli.ach"}, got.Inputs)
	require.Equal(t, 7, got.Concurrency)
	require.Equal(t, ".xlsx", ext)
}

func TestStoreFlag(t *testing.T) {
	quiet(t)
	in, out := t.TempDir(), t.TempDir()
	writeACH(t, in, "a.ach", fixture.File(1, 3, 0))
	db := filepath.Join(out, "ach.db")

	code, _, errs := runArgs(t, in, "-o", out, "--store", db, "--no-status")
	require.Equal(t, exitOK, code, errs)

	st, err := ssql.Open(context.Background(), &ssql.Options{Path: db})
	require.NoError(t, err)
	defer st.Close()
	var n int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM entries").Scan(&n))
	require.Equal(t, 3, n)
}

func TestInitConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	code, _, errs := runArgs(t, "init-config", dir)
	require.Equal(t, exitOK, code, errs)
	cfg, err := cfgpkg.Load(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	require.NoError(t, cfgpkg.Validate(cfg))
	env, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	require.Contains(t, string(env), "ACHPARSE_INPUTS=")

	// 不覆盖
	code, _, _ = runArgs(t, "init-config", dir)
	require.Equal(t, exitConfig, code)

	// YAML 模板可被严格解析并与 JSON 模板等价
	code, _, errs = runArgs(t, "init-config", dir, "--format", "yaml")
	require.Equal(t, exitOK, code, errs)
	ycfg, err := cfgpkg.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, cfg.Inputs, ycfg.Inputs)
	require.Equal(t, cfg.Components, ycfg.Components)
	require.JSONEq(t, string(cfg.Options.Writer), string(ycfg.Options.Writer))
}

func TestInitConfigStdout(t *testing.T) {
	code, out, _ := runArgs(t, "init-config", "-")
	require.Equal(t, exitOK, code)
	cfg, err := cfgpkg.LoadJSON("", []byte(out))
	require.NoError(t, err)
	require.Equal(t, []string{"-"}, cfg.Inputs)
}

func TestWatchParsesNewFile(t *testing.T) {
	quiet(t)
	dir, out := t.TempDir(), t.TempDir()
	ready := make(chan struct{})
	orig := watchReady
	watchReady = func() { close(ready) }
	defer func() { watchReady = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan int, 1)
	go func() {
		done <- run(ctx, []string{"watch", dir, "-o", out, "--settle", "50ms", "--no-status"}, io.Discard, io.Discard)
	}()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatalf("watch 未就绪")
	}
	writeACH(t, dir, "new.ach", fixture.File(1, 1, 0))
	writeACH(t, dir, "notes.md", []string{"ignored"})

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "new.ach.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case code := <-done:
		require.Equal(t, exitOK, code)
	case <-time.After(5 * time.Second):
		t.Fatalf("watch 未退出")
	}
	_, err := os.Stat(filepath.Join(out, "notes.md.json"))
	require.True(t, os.IsNotExist(err))
}

func TestWatchHelpers(t *testing.T) {
	dir := t.TempDir()
	ach := writeACH(t, dir, "a.ACH.xz", nil)
	hidden := writeACH(t, dir, ".tmp-1.ach", nil)
	other := writeACH(t, dir, "b.json", nil)
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	inOut := writeACH(t, outDir, "c.txt", nil)

	require.True(t, wanted(ach, ""))
	require.False(t, wanted(hidden, ""))
	require.False(t, wanted(other, ""))
	require.False(t, wanted(inOut, absOrEmpty(outDir)))
	require.True(t, wanted(inOut, ""))
	require.False(t, wanted(filepath.Join(dir, "gone.ach"), ""))
	require.False(t, wanted(outDir, ""))

	now := time.Now()
	pending := map[string]time.Time{"b": now.Add(-time.Second), "a": now.Add(-time.Second), "c": now}
	require.Equal(t, []string{"a", "b"}, settled(pending, now, 500*time.Millisecond))
	require.Len(t, pending, 1)
}

func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		in, key, val string
		ok           bool
	}{
		{"", "", "", false},
		{"# c", "", "", false},
		{"=x", "", "", false},
		{"A=1", "A", "1", true},
		{"export B = two ", "B", "two", true},
		{`C="a\nb"`, "C", "a\nb", true},
		{`D='a\nb'`, "D", `a\nb`, true},
		{"E=", "E", "", true},
	}
	for _, c := range cases {
		k, v, ok := parseDotEnvLine(c.in)
		if k != c.key || v != c.val || ok != c.ok {
			t.Fatalf("parseDotEnvLine(%q)=(%q,%q,%v)", c.in, k, v, ok)
		}
	}
}

func TestLoadDotEnvNoOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("ACHPARSE_T_KEEP=file\nACHPARSE_T_NEW=\"v\"\n"), 0o644))
	t.Setenv("ACHPARSE_T_KEEP", "env")
	t.Setenv("ACHPARSE_T_NEW", "")
	os.Unsetenv("ACHPARSE_T_NEW")
	require.NoError(t, loadDotEnv(p))
	require.Equal(t, "env", os.Getenv("ACHPARSE_T_KEEP"))
	require.Equal(t, "v", os.Getenv("ACHPARSE_T_NEW"))
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "none")))
}

func TestSummarize(t *testing.T) {
	s := diag.Snapshot{Diagnostics: map[contract.Category]int{contract.CategoryLength: 2, contract.CategoryAssociation: 1}}
	require.Equal(t, "3 diagnostics (association=1, length=2)", summarize(s))
}
