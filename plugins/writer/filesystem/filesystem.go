package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"achparse/pkg/contract"
)

// Options: 产物写出选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。"-" 表示写到标准输出。
	OutputDir string `json:"output_dir"`
	// Atomic: 同目录临时文件 + rename。nil 默认 true。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 仅保留文件名、丢弃目录层级。nil 默认 true。
	Flat *bool `json:"flat,omitempty"`
	// Overwrite: 目标已存在时是否覆盖。nil 默认 true；false 时返回 ErrPathInvalid。
	Overwrite *bool `json:"overwrite,omitempty"`
	// PermFile/PermDir: 为 0 时使用 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
}

// FS 将渲染产物写入目录（或标准输出）。
type FS struct {
	root      string
	atomic    bool
	flat      bool
	overwrite bool
	permF     os.FileMode
	permD     os.FileMode

	// 标准输出模式：多文件产物按调用顺序整体写出，互不交错。
	mu  sync.Mutex
	out io.Writer
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// New 创建文件系统 Writer。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: writer output_dir required", contract.ErrConfig)
	}
	w := &FS{
		root:      opts.OutputDir,
		atomic:    boolOr(opts.Atomic, true),
		flat:      boolOr(opts.Flat, true),
		overwrite: boolOr(opts.Overwrite, true),
		permF:     opts.PermFile,
		permD:     opts.PermDir,
	}
	if w.permF == 0 {
		w.permF = 0o644
	}
	if w.permD == 0 {
		w.permD = 0o755
	}
	if w.root == "-" {
		w.out = os.Stdout
	}
	return w, nil
}

// NewStream 创建写到任意 io.Writer 的 Writer（标准输出模式的通用形式）。
func NewStream(out io.Writer) *FS { return &FS{root: "-", out: out} }

var _ contract.Writer = (*FS)(nil)

// Write 将 r 的全部字节写入 id 映射的目标。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.out != nil {
		w.mu.Lock()
		defer w.mu.Unlock()
		_, err := io.Copy(w.out, ctxReader{ctx: ctx, r: r})
		return err
	}
	dest, err := w.target(id)
	if err != nil {
		return err
	}
	if !w.overwrite {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%w: %s exists", contract.ErrPathInvalid, dest)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.replace(ctx, dest, r)
	}
	return w.truncate(ctx, dest, r)
}

// target: 规范化产物 ID 并拒绝越界路径。
func (w *FS) target(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if w.flat {
		rel = filepath.Base(rel)
	}
	switch {
	case rel == "." || rel == ".." || rel == string(filepath.Separator):
	case filepath.IsAbs(rel) || filepath.VolumeName(rel) != "":
	case strings.HasPrefix(rel, ".."+string(filepath.Separator)):
	default:
		return filepath.Join(w.root, rel), nil
	}
	return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
}

func (w *FS) truncate(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := io.Copy(bw, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	return bw.Flush()
}

func (w *FS) replace(ctx context.Context, dest string, r io.Reader) (err error) {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, w.permF)
	bw := bufio.NewWriter(tmp)
	if _, err = io.Copy(bw, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = renameReplace(tmpPath, dest); err != nil {
		return err
	}
	_ = syncParent(dir)
	return nil
}

// ctxReader 在每次 Read 前检查取消。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
