package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 文件格式 JSON/YAML/TOML 共用同一组 snake_case 键；未知字段在解析期失败。
type Config struct {
	// Inputs: 文件/目录/URL 根；"-" 表示 STDIN 且不能与其他根混用。
	Inputs []string `json:"inputs"`
	// Output: 知识表持久化目标（路径/对象键/表名推导源）。
	Output string `json:"output"`
	// Knowledge: 需要扩展的已有知识表；为空从空表开始。
	Knowledge   string `json:"knowledge,omitempty"`
	Concurrency int    `json:"concurrency"`
	// Hygiene: 合并后清理空键/重复键；nil 表示未设置（默认开启）。
	Hygiene *bool `json:"hygiene,omitempty"`
	// HygieneOnly: 只加载→清理→持久化（需要 Knowledge）。
	HygieneOnly  bool    `json:"hygiene_only,omitempty"`
	Verbose      bool    `json:"verbose,omitempty"`
	PreviewChars int     `json:"preview_chars,omitempty"`
	Logging      Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与目录。Dir 为空使用 logs/；为 "-" 时写 stderr。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `json:"reader"`
	Decoder string `json:"decoder"`
	Ripper  string `json:"ripper"`
	Writer  string `json:"writer"`
	Store   string `json:"store"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader  json.RawMessage `json:"reader,omitempty"`
	Decoder json.RawMessage `json:"decoder,omitempty"`
	Ripper  json.RawMessage `json:"ripper,omitempty"`
	Writer  json.RawMessage `json:"writer,omitempty"`
	Store   json.RawMessage `json:"store,omitempty"`
}

// HygieneEnabled 返回合并后是否执行 Hygiene（未设置视为开启）。
func (c Config) HygieneEnabled() bool { return c.Hygiene == nil || *c.Hygiene }
