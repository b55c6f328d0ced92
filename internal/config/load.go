package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"achparse/pkg/contract"
)

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "ACHPARSE_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 输入不设默认（必须由文件/ENV/CLI 提供）；默认输出到标准输出。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Encoding:    "auto",
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:   "fs",
			Renderer: "json",
			Writer:   "fs",
			Store:    StoreNone,
		},
		Options: Options{
			Writer: json.RawMessage(`{"output_dir":"-"}`),
		},
	}
}

// Load 按扩展名选择解析方式：.yaml/.yml 走 YAML，其余按 JSON。
func Load(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		return LoadYAML(raw)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
		}
		defer f.Close()
		r = f
	default:
		return cfg, fmt.Errorf("%w: no config source provided", contract.ErrConfig)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", contract.ErrConfig, err)
	}
	return cfg, nil
}

// LoadYAML 将 YAML 转为 JSON 后按 LoadJSON 的严格规则解析。
// Options 子树因此同样以 JSON 形式传给组件工厂。
func LoadYAML(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	if doc == nil {
		return Config{}, fmt.Errorf("%w: yaml: empty document", contract.ErrConfig)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("%w: yaml: %v", contract.ErrConfig, err)
	}
	return LoadJSON("", js)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if v := strings.TrimSpace(over.Encoding); v != "" {
		out.Encoding = v
	}
	if v := strings.TrimSpace(over.Logging.Level); v != "" {
		out.Logging.Level = v
	}
	if v := strings.TrimSpace(over.Logging.Dir); v != "" {
		out.Logging.Dir = v
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Renderer != "" {
		out.Components.Renderer = over.Components.Renderer
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}
	if over.Components.Store != "" {
		out.Components.Store = over.Components.Store
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Renderer) > 0 {
		out.Options.Renderer = cloneRaw(over.Options.Renderer)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Store) > 0 {
		out.Options.Store = cloneRaw(over.Options.Store)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：INPUTS（shell 引号规则拆分）、CONCURRENCY、ENCODING、LOG_LEVEL、LOG_DIR、
// COMPONENTS_{READER,RENDERER,WRITER,STORE}、OPTIONS_{READER,RENDERER,WRITER,STORE}_JSON。
// 空值与未知键忽略。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key, val := kv[len(EnvPrefix):eq], kv[eq+1:]
		// 空值视为未设置（.env 模板中的空键）
		if strings.TrimSpace(val) == "" {
			continue
		}
		switch key {
		case "INPUTS":
			words, err := shellquote.Split(val)
			if err != nil {
				return over, fmt.Errorf("%w: %sINPUTS: %v", contract.ErrConfig, EnvPrefix, err)
			}
			over.Inputs = words
		case "CONCURRENCY":
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return over, fmt.Errorf("%w: %sCONCURRENCY: %v", contract.ErrConfig, EnvPrefix, err)
			}
			over.Concurrency = n
		case "ENCODING":
			over.Encoding = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_RENDERER":
			over.Components.Renderer = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		case "COMPONENTS_STORE":
			over.Components.Store = strings.TrimSpace(val)
		case "OPTIONS_READER_JSON":
			over.Options.Reader = json.RawMessage(val)
		case "OPTIONS_RENDERER_JSON":
			over.Options.Renderer = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		case "OPTIONS_STORE_JSON":
			over.Options.Store = json.RawMessage(val)
		}
	}
	return over, nil
}

// PatchOption 在原样 JSON 对象上设置单个键（CLI 标志覆盖用），其余键保持不变。
func PatchOption(raw json.RawMessage, key string, v any) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: options: %v", contract.ErrConfig, err)
		}
		if m == nil {
			m = map[string]json.RawMessage{}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: options %s: %v", contract.ErrConfig, key, err)
	}
	m[key] = b
	return json.Marshal(m)
}

// EncodeInputs 以 shell 引号规则拼接输入根（ACHPARSE_INPUTS 的逆操作）。
func EncodeInputs(inputs []string) string { return shellquote.Join(inputs...) }

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
