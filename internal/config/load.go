package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 为环境变量覆盖的统一前缀。
const EnvPrefix = "ANTIOCHUS_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Output:      "knowledge.csv",
		Concurrency: 1,
		Logging:     Logging{Level: "info"},
		Components: Components{
			Reader:  "auto",
			Decoder: "auto",
			Ripper:  "nmap",
			Writer:  "fs",
			Store:   "csv",
		},
	}
}

// Load 按扩展名解析配置文件：.json / .yaml / .yml / .toml。
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return LoadJSON("", raw)
	case ".yaml", ".yml":
		return LoadYAML(raw)
	case ".toml":
		return LoadTOML(raw)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .json/.yaml/.yml/.toml)", filepath.Ext(path))
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	switch {
	case len(raw) > 0:
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		raw = b
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 把 YAML 文档转为通用树后按 JSON 规则严格解析，
// 使组件 Options 子树与 JSON 配置得到同样的原样 JSON。
func LoadYAML(raw []byte) (Config, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return fromTree(tree)
}

// LoadTOML 同 LoadYAML，源格式为 TOML。
func LoadTOML(raw []byte) (Config, error) {
	var tree map[string]any
	if _, err := toml.Decode(string(raw), &tree); err != nil {
		return Config{}, fmt.Errorf("toml: %w", err)
	}
	return fromTree(tree)
}

func fromTree(tree map[string]any) (Config, error) {
	if tree == nil {
		return Config{}, errors.New("empty config document")
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return Config{}, err
	}
	return LoadJSON("", b)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if s := strings.TrimSpace(over.Output); s != "" {
		out.Output = s
	}
	if s := strings.TrimSpace(over.Knowledge); s != "" {
		out.Knowledge = s
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	// Hygiene 的 false 具有语义，用指针区分“未设置”
	if over.Hygiene != nil {
		v := *over.Hygiene
		out.Hygiene = &v
	}
	if over.HygieneOnly {
		out.HygieneOnly = true
	}
	if over.Verbose {
		out.Verbose = true
	}
	if over.PreviewChars != 0 {
		out.PreviewChars = over.PreviewChars
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Decoder != "" {
		out.Components.Decoder = over.Components.Decoder
	}
	if over.Components.Ripper != "" {
		out.Components.Ripper = over.Components.Ripper
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
	if len(over.Options.Decoder) > 0 {
		out.Options.Decoder = cloneRaw(over.Options.Decoder)
	}
	if len(over.Options.Ripper) > 0 {
		out.Options.Ripper = cloneRaw(over.Options.Ripper)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	if len(over.Options.Store) > 0 {
		out.Options.Store = cloneRaw(over.Options.Store)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合，前缀 ANTIOCHUS_）。
// 支持：INPUTS, OUTPUT, KNOWLEDGE, CONCURRENCY, HYGIENE, VERBOSE, PREVIEW_CHARS,
// LOG_LEVEL, LOG_DIR, COMPONENTS_*, OPTIONS_<COMPONENT>_JSON。
// 非法数值/布尔返回错误；集合外的键忽略。
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
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空配置文件中的值
			continue
		}
		var err error
		switch key {
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "OUTPUT":
			over.Output = val
		case "KNOWLEDGE":
			over.Knowledge = val
		case "CONCURRENCY":
			over.Concurrency, err = atoi(val)
		case "PREVIEW_CHARS":
			over.PreviewChars, err = atoi(val)
		case "HYGIENE":
			var b bool
			if b, err = strconv.ParseBool(val); err == nil {
				over.Hygiene = &b
			}
		case "VERBOSE":
			over.Verbose, err = strconv.ParseBool(val)
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_DECODER":
			over.Components.Decoder = val
		case "COMPONENTS_RIPPER":
			over.Components.Ripper = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "COMPONENTS_STORE":
			over.Components.Store = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader, err = rawJSON(val)
		case "OPTIONS_DECODER_JSON":
			over.Options.Decoder, err = rawJSON(val)
		case "OPTIONS_RIPPER_JSON":
			over.Options.Ripper, err = rawJSON(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer, err = rawJSON(val)
		case "OPTIONS_STORE_JSON":
			over.Options.Store, err = rawJSON(val)
		}
		if err != nil {
			return Config{}, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
		}
	}
	return over, nil
}

func rawJSON(s string) (json.RawMessage, error) {
	if !json.Valid([]byte(s)) {
		return nil, errors.New("invalid JSON")
	}
	return json.RawMessage(s), nil
}

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

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
