package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"achparse/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 扫描目录时跳过的目录基名（大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// AllowExts: 目录扫描时接受的扩展名（含点，大小写不敏感；判断前先去掉 .xz）。
	// nil 采用默认 [".ach", ".lob", ".txt"]；显式空切片表示不限制。
	// 直接作为 root 给出的文件不受此限制。
	AllowExts []string `json:"allow_exts"`
	// NoDecompress: 为 true 时不对 .xz 文件做透明解压。
	NoDecompress bool `json:"no_decompress"`
}

var defaultExts = []string{".ach", ".lob", ".txt"}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
// 约束：
//  1. roots 为空或仅为 "-" 时读取 STDIN，FileID 为 "stdin"；"-" 不可与其他根混用；
//  2. 目录按字典序遍历，先子目录后文件；目录符号链接不跟随；
//  3. 单个文件打开失败不终止遍历：yield 收到一个读取即报错的 ReadCloser（错误包裹 ErrRead）；
//  4. .xz 文件透明解压。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	allow      map[string]struct{} // nil 表示不限制
	decompress bool
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	if opts == nil {
		opts = &Options{}
	}
	b := 64 * 1024
	if opts.BufSize > 0 {
		b = opts.BufSize
	}
	ex := make(map[string]struct{}, len(opts.ExcludeDirNames))
	for _, name := range opts.ExcludeDirNames {
		if name != "" {
			ex[strings.ToLower(name)] = struct{}{}
		}
	}
	exts := opts.AllowExts
	if exts == nil {
		exts = defaultExts
	}
	var allow map[string]struct{}
	if len(exts) > 0 {
		allow = make(map[string]struct{}, len(exts))
		for _, e := range exts {
			if e != "" {
				allow[strings.ToLower(e)] = struct{}{}
			}
		}
	}
	return &FileSystem{bufSize: b, excludeDir: ex, allow: allow, decompress: !opts.NoDecompress}
}

// Iterate 遍历 roots，按稳定顺序对每个文件调用 yield。yield 负责关闭 rc。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.FileID("stdin"), r.wrap(io.NopCloser(os.Stdin), "stdin"))
	}
	for _, s := range roots {
		if s == "-" {
			return errors.New("stdin '-' cannot be mixed with other roots")
		}
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	info, err := os.Stat(root)
	if err != nil {
		// 缺失或不可访问的 root 以失败读取者交给下游，由其记为读取诊断。
		return yield(contract.NormalizeFileID(root), failed(root, err))
	}
	if info.IsDir() {
		li, err := os.Lstat(root)
		if err == nil && li.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.emit(root, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", contract.ErrRead, dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !r.accept(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 || !e.Type().IsRegular() {
			// 符号链接仅在目标为常规文件时接受；其余非常规文件（fifo、设备）跳过。
			t, err := os.Stat(p)
			if err != nil || !t.Mode().IsRegular() {
				continue
			}
		}
		if err := r.emit(p, yield); err != nil {
			return err
		}
	}
	return nil
}

// accept 按扩展名过滤（先剥离 .xz）。
func (r *FileSystem) accept(name string) bool {
	if r.allow == nil {
		return true
	}
	name = strings.TrimSuffix(strings.ToLower(name), ".xz")
	_, ok := r.allow[path.Ext(name)]
	return ok
}

func (r *FileSystem) emit(p string, yield func(contract.FileID, io.ReadCloser) error) error {
	id := contract.NormalizeFileID(p)
	f, err := os.Open(p)
	if err != nil {
		return yield(id, failed(p, err))
	}
	rc := r.wrap(f, p)
	if err := yield(id, rc); err != nil {
		_ = rc.Close()
		return err
	}
	return nil
}

// wrap 加缓冲；.xz 文件再套一层解压。
func (r *FileSystem) wrap(c io.ReadCloser, name string) io.ReadCloser {
	br := bufio.NewReaderSize(c, r.bufSize)
	if !r.decompress || !strings.HasSuffix(strings.ToLower(name), ".xz") {
		return &readCloser{Reader: br, c: c}
	}
	xr, err := xz.NewReader(br)
	if err != nil {
		_ = c.Close()
		return failed(name, fmt.Errorf("xz reader: %w", err))
	}
	return &readCloser{Reader: xr, c: c}
}

// readCloser 将任意 Reader 与底层 Closer 组合。
type readCloser struct {
	io.Reader
	c io.Closer
}

func (b *readCloser) Close() error { return b.c.Close() }

// errReader 首次读取即返回打开阶段的错误。
type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
func (errReader) Close() error               { return nil }

func failed(p string, err error) io.ReadCloser {
	return errReader{err: fmt.Errorf("%w: %s: %v", contract.ErrRead, p, err)}
}
