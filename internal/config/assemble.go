package config

import (
	"context"
	"fmt"
	"strings"

	"achparse/internal/pipeline"
	"achparse/internal/source"
	"achparse/pkg/contract"
	"achparse/pkg/parser"
	"achparse/pkg/registry"
)

var levels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}

// Validate 对最小必要边界做静态校验；错误均包裹 contract.ErrConfig。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("%w: inputs empty", contract.ErrConfig)
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: input path cannot be empty", contract.ErrConfig)
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return fmt.Errorf("%w: '-' cannot be mixed with other roots", contract.ErrConfig)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", contract.ErrConfig)
	}
	if _, err := source.ParseEncoding(cfg.Encoding); err != nil {
		return err
	}
	if !levels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		return fmt.Errorf("%w: logging.level %q not one of debug|info|warn|error", contract.ErrConfig, cfg.Logging.Level)
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered (have %v)", contract.ErrConfig, name, registry.Names(registry.Reader))
	}
	if name := effName(cfg.Components.Renderer, d.Renderer); registry.Renderer[name] == nil {
		return fmt.Errorf("%w: renderer %q not registered (have %v)", contract.ErrConfig, name, registry.Names(registry.Renderer))
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered (have %v)", contract.ErrConfig, name, registry.Names(registry.Writer))
	}
	if name := effName(cfg.Components.Store, d.Store); name != StoreNone && registry.Store[name] == nil {
		return fmt.Errorf("%w: store %q not registered (have %v)", contract.ErrConfig, name, registry.Names(registry.Store))
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// 返回的 Components.Store 非 nil 时由调用方负责 Close。
func Assemble(ctx context.Context, cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults().Components
	enc, _ := source.ParseEncoding(cfg.Encoding)

	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	rd, err := registry.Renderer[effName(cfg.Components.Renderer, d.Renderer)](cfg.Options.Renderer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	comp := pipeline.Components{Reader: r, Parser: parser.New(nil), Renderer: rd, Writer: w}
	// 存储最后打开，前面的失败不会遗留连接
	if name := effName(cfg.Components.Store, d.Store); name != StoreNone {
		st, err := registry.Store[name](ctx, cfg.Options.Store)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, err
		}
		comp.Store = st
	}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		Encoding:    enc,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
