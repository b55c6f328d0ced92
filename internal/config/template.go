package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认输入为 STDIN（"-"），JSON 输出到 ./out 目录；
// - 组件名采用仓库内置实现，持久化关闭；
// - Options 列出全部键（值为中性默认），便于按需修改。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Inputs:      []string{"-"},
		Concurrency: 4,
		Encoding:    d.Encoding,
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components:  d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "allow_exts": [".ach", ".lob", ".txt"],
  "no_decompress": false
}`)
	cfg.Options.Renderer = json.RawMessage(`{
  "indent": 4,
  "envelope": false
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "overwrite": true,
  "perm_file": 0,
  "perm_dir": 0
}`)
	// store 为 none 时不生效；切换为 sqlite 后使用
	cfg.Options.Store = json.RawMessage(`{
  "path": "achparse.db",
  "replace": true
}`)
	return cfg
}
