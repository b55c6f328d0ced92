package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	cfgpkg "achparse/internal/config"
)

// InitConfigCmd 在目录下生成 config.json（或 config.yaml）与 .env 模板；已存在则失败，不覆盖。
type InitConfigCmd struct {
	Dir    string `arg:"" optional:"" default:"." help:"目标目录；'-' 表示打印到标准输出"`
	Format string `enum:"json,yaml" default:"json" help:"配置格式 json|yaml"`
}

func (c *InitConfigCmd) Run(env *appEnv) error {
	b, err := renderTemplate(c.Format)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("生成默认配置失败: %w", err)}
	}
	if c.Dir == "-" {
		_, err := env.stdout.Write(b)
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("生成默认配置失败: %w", err)}
	}
	if err := writeExclusive(filepath.Join(c.Dir, "config."+c.Format), b); err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("生成默认配置失败: %w", err)}
	}
	if err := writeDotEnv(filepath.Join(c.Dir, ".env")); err != nil {
		fprintf(env.stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

// renderTemplate 输出模板配置；YAML 经由 JSON 中转，保证键名与 JSON 一致。
func renderTemplate(format string) ([]byte, error) {
	js, err := json.MarshalIndent(cfgpkg.DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return nil, err
	}
	if format != "yaml" {
		return append(js, '\n'), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(js, &doc); err != nil {
		return nil, err
	}
	// JSON 是 YAML 的子集；清除 flow 与双引号风格以输出块格式
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeExclusive 仅在文件不存在时写入。
func writeExclusive(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(b)
	return err
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# achparse .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")
	b.WriteString("ACHPARSE_CONFIG_FILE=\n\n")
	b.WriteString("# 运行参数覆盖（INPUTS 按 shell 引号规则拆分）\n")
	for _, k := range []string{"INPUTS", "CONCURRENCY", "ENCODING", "LOG_LEVEL", "LOG_DIR"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"READER", "RENDERER", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + k + "=\n")
	}
	b.WriteString("\n# 组件 options（原样 JSON）\n")
	for _, k := range []string{"READER", "RENDERER", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + k + "_JSON=\n")
	}
	err := writeExclusive(path, []byte(b.String()))
	if os.IsExist(err) {
		return nil
	}
	return err
}
