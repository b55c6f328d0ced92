package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"achparse/internal/diag"
)

// watchReady 在目录加入监视后调用（测试同步用）。
var watchReady = func() {}

// watchExts: 监视模式接受的扩展名（判断前先去掉 .xz）。
var watchExts = map[string]bool{".ach": true, ".lob": true, ".txt": true}

// WatchCmd 监视单个目录：新建/写入的文件静置 Settle 后解析一次。
// 单文件失败只记录日志，不终止监视；ctx 取消时返回。
type WatchCmd struct {
	Dir      string        `arg:"" type:"existingdir" help:"监视目录"`
	Settle   time.Duration `default:"500ms" help:"最后一次写入后的静置时间"`
	RunFlags `embed:""`
}

func (c *WatchCmd) Run(env *appEnv) error {
	cfg, err := env.resolve(&c.RunFlags, []string{c.Dir})
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("配置校验失败: %w", err)}
	}
	s, err := env.open(cfg, &c.RunFlags)
	if err != nil {
		return err
	}
	defer s.close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return &exitError{code: exitRun, err: fmt.Errorf("监视初始化失败: %w", err)}
	}
	defer w.Close()
	if err := w.Add(c.Dir); err != nil {
		return &exitError{code: exitRun, err: fmt.Errorf("监视 %s 失败: %w", c.Dir, err)}
	}
	s.term.RunStart(cfg.Concurrency, cfg.Components.Renderer)
	s.logger.StartWith("watch", "watching", "", map[string]string{"dir": c.Dir})
	watchReady()

	skip := absOrEmpty(outputDir(cfg))
	pending := map[string]time.Time{}
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-env.ctx.Done():
			s.term.RunFinish(true, time.Since(env.start))
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && wanted(ev.Name, skip) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.ErrorWith("watch", diag.Classify(err), err.Error(), nil, "")
		case now := <-tick.C:
			for _, p := range settled(pending, now, c.Settle) {
				c.parseOne(env.ctx, s, p)
			}
		}
	}
}

// parseOne 复用同一装配，仅替换输入根。
func (c *WatchCmd) parseOne(ctx context.Context, s *session, path string) {
	set := s.set
	set.Inputs = []string{path}
	t := s.logger.StartWith("watch", "parse", path, nil)
	snap, err := pipelineRun(ctx, s.comp, set, s.logger)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.Fail(err)
		}
		return
	}
	t.Finish("parse", int64(snap.Entries))
}

// settled 取出静置时间已到的路径（按名称排序），并从 pending 中删除。
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var out []string
	for p, at := range pending {
		if now.Sub(at) >= settle {
			out = append(out, p)
			delete(pending, p)
		}
	}
	sort.Strings(out)
	return out
}

// wanted 过滤：普通文件、非隐藏、扩展名受支持、不在输出目录内。
func wanted(path, skipDir string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(strings.ToLower(base), ".xz")))
	if !watchExts[ext] {
		return false
	}
	if skipDir != "" {
		if abs := absOrEmpty(path); abs == skipDir || strings.HasPrefix(abs, skipDir+string(filepath.Separator)) {
			return false
		}
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func absOrEmpty(p string) string {
	if p == "" || p == "-" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	return abs
}
