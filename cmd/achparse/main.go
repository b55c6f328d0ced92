package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	cfgpkg "achparse/internal/config"
	"achparse/internal/diag"
	"achparse/internal/pipeline"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行失败；2 严格模式下存在诊断；3 配置/参数失败。
const (
	exitOK     = 0
	exitRun    = 1
	exitStrict = 2
	exitConfig = 3
)

// CLI 顶层：默认子命令 parse。
type CLI struct {
	Config string `name:"config" short:"c" help:"配置文件（.json/.yaml）；缺省读取 ACHPARSE_CONFIG_FILE 或 ./config.{json,yaml}" type:"path"`

	Parse      ParseCmd      `cmd:"" default:"withargs" help:"解析 ACH 文件并输出结果（默认子命令）"`
	Schema     SchemaCmd     `cmd:"" help:"打印记录字段布局"`
	Watch      WatchCmd      `cmd:"" help:"监视目录，解析新增/变更的文件"`
	InitConfig InitConfigCmd `cmd:"" name:"init-config" help:"生成默认 config 与 .env 模板（不覆盖）"`
	Version    VersionCmd    `cmd:"" help:"打印版本"`
}

// RunFlags 为 parse/watch 共用的覆盖项（优先级最高）。
type RunFlags struct {
	Concurrency int    `short:"j" help:"并发文件数（覆盖配置）"`
	Encoding    string `short:"e" help:"源编码 auto|ascii|ebcdic（覆盖配置）"`
	Renderer    string `short:"r" help:"渲染器 json|text|xlsx（覆盖配置）"`
	Out         string `short:"o" help:"输出目录；'-' 表示标准输出"`
	Store       string `help:"SQLite 数据库路径（启用 sqlite 持久化）"`
	LogLevel    string `name:"log-level" help:"日志级别 debug|info|warn|error"`
	Status      bool   `default:"true" negatable:"" help:"终端状态提示（stderr）"`
	Strict      bool   `help:"任一诊断即以退出码 2 结束"`
}

// ParseCmd 解析一次后退出。
type ParseCmd struct {
	Roots    []string `arg:"" optional:"" help:"文件或目录；'-' 表示 STDIN（不能与其他根混用）"`
	RunFlags `embed:""`
}

func (c *ParseCmd) Run(env *appEnv) error {
	cfg, err := env.resolve(&c.RunFlags, c.Roots)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("配置校验失败: %w", err)}
	}
	return env.execute(cfg, &c.RunFlags)
}

// VersionCmd 打印版本。
type VersionCmd struct{}

func (VersionCmd) Run(env *appEnv) error {
	_, err := fmt.Fprintf(env.stdout, "achparse %s\n", version)
	return err
}

// exitError 携带退出码；err 为 nil 时不输出信息。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitSignal 用于拦截 kong 的 Exit（--help 等），避免测试进程退出。
type exitSignal int

// appEnv 为子命令共享的运行环境（由 kong 按类型绑定）。
type appEnv struct {
	ctx     context.Context
	cli     *CLI
	stdout  io.Writer
	stderr  io.Writer
	environ []string
	corrID  string
	start   time.Time
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			s, ok := r.(exitSignal)
			if !ok {
				panic(r)
			}
			code = int(s)
		}
	}()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")

	var cli CLI
	k, err := kong.New(&cli,
		kong.Name("achparse"),
		kong.Description("NACHA/ACH 定长文件解析器"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitSignal(c)) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		fprintf(stderr, "初始化命令行失败: %v\n", err)
		return exitConfig
	}
	kctx, err := k.Parse(args)
	if err != nil {
		fprintf(stderr, "参数解析失败: %v\n", err)
		return exitConfig
	}
	env := &appEnv{
		ctx:     ctx,
		cli:     &cli,
		stdout:  stdout,
		stderr:  stderr,
		environ: os.Environ(),
		corrID:  uuid.NewString(),
		start:   time.Now(),
	}
	if err := kctx.Run(env); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil && !errors.Is(ee.err, context.Canceled) {
				fprintf(stderr, "%v\n", ee.err)
			}
			return ee.code
		}
		fprintf(stderr, "%v\n", err)
		return exitRun
	}
	return exitOK
}

// resolve 按 Defaults < 配置文件 < ENV < CLI 合并并校验。
func (e *appEnv) resolve(f *RunFlags, roots []string) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	path := e.cli.Config
	if path == "" {
		path = lookupEnv(e.environ, cfgpkg.EnvPrefix+"CONFIG_FILE")
	}
	if path == "" {
		// 默认读取工作目录下 config.json / config.yaml（若存在）
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				path = p
				break
			}
		}
	}
	if path != "" {
		base, err := cfgpkg.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(e.environ)
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// 切换渲染器时丢弃原渲染器的 options（字段集不同，严格解析会失败）
	if r := strings.TrimSpace(f.Renderer); r != "" && r != cfg.Components.Renderer {
		cfg.Options.Renderer = nil
	}
	cfg = cfgpkg.Merge(cfg, cfgpkg.Config{
		Inputs:      roots,
		Concurrency: f.Concurrency,
		Encoding:    f.Encoding,
		Logging:     cfgpkg.Logging{Level: f.LogLevel},
		Components:  cfgpkg.Components{Renderer: strings.TrimSpace(f.Renderer)},
	})
	if f.Out != "" {
		if cfg.Options.Writer, err = cfgpkg.PatchOption(cfg.Options.Writer, "output_dir", f.Out); err != nil {
			return cfg, err
		}
	}
	if f.Store != "" {
		cfg.Components.Store = "sqlite"
		if cfg.Options.Store, err = cfgpkg.PatchOption(cfg.Options.Store, "path", f.Store); err != nil {
			return cfg, err
		}
	}
	return cfg, cfgpkg.Validate(cfg)
}

// session 为一次装配好的运行上下文（parse 用一次，watch 反复使用）。
type session struct {
	logger *diag.Logger
	term   *diag.Terminal
	comp   pipeline.Components
	set    pipeline.Settings
}

func (e *appEnv) open(cfg cfgpkg.Config, f *RunFlags) (*session, error) {
	logger := diag.NewLogger(e.corrID, cfg.Logging.Level, cfg.Logging.Dir)
	if err := preflightCheckOutputDir(cfg); err != nil {
		logger.ErrorWith("pipeline", diag.Classify(err), err.Error(), &e.start, "")
		_ = logger.Close()
		return nil, &exitError{code: exitConfig, err: fmt.Errorf("输出目录不可写或无法创建: %w", err)}
	}
	comp, set, err := cfgpkg.Assemble(e.ctx, cfg)
	if err != nil {
		logger.ErrorWith("pipeline", diag.Classify(err), err.Error(), &e.start, "")
		_ = logger.Close()
		return nil, &exitError{code: exitConfig, err: fmt.Errorf("装配失败: %w", err)}
	}
	logger.DebugStart("config", "effective", "", map[string]string{
		"inputs":      cfgpkg.EncodeInputs(cfg.Inputs),
		"concurrency": strconv.Itoa(cfg.Concurrency),
		"encoding":    cfg.Encoding,
		"reader":      cfg.Components.Reader,
		"renderer":    cfg.Components.Renderer,
		"writer":      cfg.Components.Writer,
		"store":       cfg.Components.Store,
	})
	term := diag.NewTerminal(e.stderr, f.Status)
	diag.SetTerminal(term)
	return &session{logger: logger, term: term, comp: comp, set: set}, nil
}

func (s *session) close() {
	diag.SetTerminal(nil)
	if s.comp.Store != nil {
		_ = s.comp.Store.Close()
	}
	_ = s.logger.Close()
}

// execute 运行一次流水线并映射退出码。
func (e *appEnv) execute(cfg cfgpkg.Config, f *RunFlags) error {
	s, err := e.open(cfg, f)
	if err != nil {
		return err
	}
	defer s.close()
	s.term.RunStart(cfg.Concurrency, cfg.Components.Renderer)

	t := s.logger.Start("pipeline", "run")
	snap, err := pipelineRun(e.ctx, s.comp, s.set, s.logger)
	if err != nil {
		t.Fail(err)
		s.term.RunFinish(false, time.Since(e.start))
		return &exitError{code: exitRun, err: fmt.Errorf("运行失败: %w", err)}
	}
	t.Finish("run", int64(snap.FilesOK))
	s.term.RunFinish(true, time.Since(e.start))
	if f.Strict && snap.Total() > 0 {
		return &exitError{code: exitStrict, err: fmt.Errorf("严格模式: %s", summarize(snap))}
	}
	return nil
}

// summarize 形如 "3 diagnostics (length=2, structural=1)"。
func summarize(s diag.Snapshot) string {
	parts := make([]string, 0, len(s.Diagnostics))
	for _, c := range s.Categories() {
		parts = append(parts, fmt.Sprintf("%s=%d", c, s.Diagnostics[c]))
	}
	return fmt.Sprintf("%d diagnostics (%s)", s.Total(), strings.Join(parts, ", "))
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// outputDir 解析 fs writer 的 output_dir（非 fs writer 返回空）。
func outputDir(cfg cfgpkg.Config) string {
	if name := strings.TrimSpace(cfg.Components.Writer); name != "" && name != cfgpkg.Defaults().Components.Writer {
		return ""
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	return strings.TrimSpace(wopts.OutputDir)
}

// preflightCheckOutputDir: fs writer 启动前检查输出目录可写性。
// 规则：
// - 目录已存在：尝试创建并删除临时文件；
// - 目录不存在：创建之（失败即不可写）；
// - "-"（标准输出）与非 fs writer 跳过。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	dir := outputDir(cfg)
	if dir == "" || dir == "-" {
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && !st.IsDir():
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case err != nil && !os.IsNotExist(err):
		return err
	case err != nil:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
