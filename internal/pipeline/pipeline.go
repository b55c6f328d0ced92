package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"achparse/internal/diag"
	"achparse/internal/source"
	"achparse/pkg/contract"
	"achparse/pkg/parser"
)

// - 并发只在文件之间：单个文件的解析始终是单写者折叠。
// - 读取/解码失败不终止运行：该文件得到一条 read 诊断，照常渲染输出。
// - 首错取消：渲染/写出/持久化出错时取消整体，排空后返回首错。

// Components 聚合运行所需组件。Store 可为 nil（不持久化）；Parser 为 nil 时使用默认解析器。
type Components struct {
	Reader   contract.Reader
	Parser   *parser.Parser
	Renderer contract.Renderer
	Writer   contract.Writer
	Store    contract.Store
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	Encoding    source.Encoding
}

// Run 执行 Reader → 指纹/解码 → 解析 → Renderer → Writer → (Store)。
// 返回本次运行的计数快照；诊断不构成错误。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (diag.Snapshot, error) {
	counters := diag.NewCounters()
	if err := sanity(comp, set); err != nil {
		return counters.Snapshot(), fmt.Errorf("sanity: %w", err)
	}
	if logger == nil {
		logger = diag.NewNop()
	}
	if comp.Parser == nil {
		comp.Parser = parser.New(nil)
	}
	limit := set.Concurrency
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	rtimer := logger.Start("reader", "iterate")
	var files int64
	ierr := comp.Reader.Iterate(gctx, set.Inputs, func(id contract.FileID, rc io.ReadCloser) error {
		if err := gctx.Err(); err != nil {
			_ = rc.Close()
			return err
		}
		files++
		// SetLimit 满载时阻塞，形成背压
		g.Go(func() error {
			defer rc.Close()
			return processFile(gctx, comp, set, logger, counters, id, rc)
		})
		return nil
	})
	if werr := g.Wait(); werr != nil {
		return counters.Snapshot(), werr
	}
	if ierr != nil {
		rtimer.Fail(ierr)
		return counters.Snapshot(), fmt.Errorf("reader iterate: %w", ierr)
	}
	rtimer.Finish("iterate", files)
	return counters.Snapshot(), nil
}

func processFile(ctx context.Context, comp Components, set Settings, logger *diag.Logger, counters *diag.Counters, id contract.FileID, r io.Reader) (err error) {
	t0 := time.Now()
	term := diag.GetTerminal()
	term.FileStart(string(id))
	var doc contract.Document
	defer func() {
		if err != nil {
			counters.ObserveError(err)
			term.FileFinish(string(id), false, 0, 0, time.Since(t0))
			return
		}
		counters.ObserveResult(doc.Result)
		term.FileFinish(string(id), true, doc.Result.EntryCount(), len(doc.Result.Errors), time.Since(t0))
	}()

	doc = parse(comp.Parser, set.Encoding, logger, id, r)
	if err := ctx.Err(); err != nil {
		return err
	}

	ext := comp.Renderer.Ext()
	vtimer := logger.StartWith("renderer", "render", string(id), map[string]string{"ext": ext})
	out, err := comp.Renderer.Render(ctx, doc)
	if err != nil {
		vtimer.Fail(err)
		return fmt.Errorf("render %s: %w", id, err)
	}
	vtimer.Finish("render", 1)

	aid := contract.ArtifactFor(id, ext)
	wtimer := logger.StartWith("writer", "write", string(aid), nil)
	if err := comp.Writer.Write(ctx, aid, out); err != nil {
		wtimer.Fail(err)
		return fmt.Errorf("write %s: %w", aid, err)
	}
	wtimer.Finish("write", 1)

	if comp.Store == nil {
		return nil
	}
	stimer := logger.StartWith("store", "save", string(id), nil)
	if err := comp.Store.Save(ctx, doc); err != nil {
		stimer.Fail(err)
		return fmt.Errorf("store %s: %w", id, err)
	}
	stimer.Finish("save", int64(doc.Result.EntryCount()))
	return nil
}

// parse 读取全部字节并解析；I/O 或编码失败转为 read 诊断。
func parse(p *parser.Parser, enc source.Encoding, logger *diag.Logger, id contract.FileID, r io.Reader) contract.Document {
	ptimer := logger.StartWith("parser", "parse", string(id), nil)
	b, err := io.ReadAll(r)
	if err != nil {
		logger.ErrorWith("reader", diag.Classify(err), err.Error(), nil, string(id))
		return contract.Document{Source: contract.Source{FileID: id}, Result: readFailure(id, err)}
	}
	src, text, err := source.Load(id, b, enc)
	if err != nil {
		logger.ErrorWith("source", diag.Classify(err), err.Error(), nil, string(id))
		return contract.Document{Source: src, Result: readFailure(id, err)}
	}
	res := p.ParseContent(text)
	ptimer.Finish("parse", int64(res.EntryCount()))
	if len(res.Errors) > 0 {
		kv := map[string]string{"count": strconv.Itoa(len(res.Errors))}
		for cat, n := range contract.CountBy(res.Errors) {
			kv[string(cat)] = strconv.Itoa(n)
		}
		logger.Warn("parser", "diagnostics", string(id), kv)
	}
	return contract.Document{Source: src, Result: res}
}

// readFailure 返回仅含一条 read 诊断的空结果。
func readFailure(id contract.FileID, err error) *contract.ParseResult {
	sink := contract.NewCollector()
	sink.Add(0, contract.CategoryRead, "read %s: %s", id, causeText(err))
	res := contract.NewParseResult()
	res.Errors = sink.Items()
	return res
}

// causeText 去掉哨兵前缀，仅保留底层原因。
func causeText(err error) string {
	s := err.Error()
	for _, sentinel := range []error{contract.ErrRead, contract.ErrEncoding} {
		if errors.Is(err, sentinel) {
			s = strings.TrimPrefix(s, sentinel.Error()+": ")
		}
	}
	return s
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Renderer == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}
