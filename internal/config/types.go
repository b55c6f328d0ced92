package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知字段在解析期失败（JSON 与 YAML 同样严格）。
type Config struct {
	Inputs      []string `json:"inputs"`
	Concurrency int      `json:"concurrency"`
	// Encoding: auto | ascii | ebcdic。
	Encoding string  `json:"encoding"`
	Logging  Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与落地目录（空目录写 stderr）。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。Store 为空或 "none" 表示不持久化。
type Components struct {
	Reader   string `json:"reader"`
	Renderer string `json:"renderer"`
	Writer   string `json:"writer"`
	Store    string `json:"store"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader   json.RawMessage `json:"reader"`
	Renderer json.RawMessage `json:"renderer"`
	Writer   json.RawMessage `json:"writer"`
	Store    json.RawMessage `json:"store"`
}

// StoreNone 表示关闭持久化阶段。
const StoreNone = "none"
