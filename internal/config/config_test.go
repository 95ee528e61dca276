package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"antiochus/pkg/contract"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("写入 %s 失败: %v", name, err)
	}
	return p
}

// UT-CFG-01: 解析完整 config.json
func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "config.json", `{
  "inputs": ["docs"],
  "output": "out/kb.csv",
  "knowledge": "kb.csv",
  "concurrency": 4,
  "hygiene": false,
  "logging": {"level": "debug", "dir": "-"},
  "components": {"reader": "fs", "decoder": "txt", "ripper": "nmap", "writer": "fs", "store": "csv"},
  "options": {"ripper": {"context_radius": 10}}
}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(cfg.Inputs) != 1 || cfg.Components.Reader != "fs" || cfg.Concurrency != 4 {
		t.Fatalf("字段映射错误: %+v", cfg)
	}
	if cfg.HygieneEnabled() {
		t.Fatalf("hygiene=false 应关闭清理")
	}
	if string(cfg.Options.Ripper) != `{"context_radius": 10}` {
		t.Fatalf("Options 应原样保留: %s", cfg.Options.Ripper)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("校验失败: %v", err)
	}
}

// UT-CFG-02: YAML 与 TOML 解析到同一结构
func TestLoadYAMLAndTOML(t *testing.T) {
	y := writeFile(t, "config.yaml", `
inputs: [a.txt, b.html]
output: kb.csv
concurrency: 2
hygiene: true
components:
  store: sqlite
options:
  store:
    dsn: kb.db
    busy_timeout_ms: 100
`)
	tm := writeFile(t, "config.toml", `
inputs = ["a.txt", "b.html"]
output = "kb.csv"
concurrency = 2
hygiene = true

[components]
store = "sqlite"

[options.store]
dsn = "kb.db"
busy_timeout_ms = 100
`)
	for _, p := range []string{y, tm} {
		cfg, err := Load(p)
		if err != nil {
			t.Fatalf("%s 加载失败: %v", filepath.Ext(p), err)
		}
		if len(cfg.Inputs) != 2 || cfg.Output != "kb.csv" || cfg.Concurrency != 2 || !cfg.HygieneEnabled() {
			t.Fatalf("%s 字段映射错误: %+v", filepath.Ext(p), cfg)
		}
		if cfg.Components.Store != "sqlite" || len(cfg.Options.Store) == 0 {
			t.Fatalf("%s store 映射错误: %+v", filepath.Ext(p), cfg.Components)
		}
	}
}

// UT-CFG-03: 含非法字段（各格式一致拒绝）
func TestLoadUnknown(t *testing.T) {
	if _, err := LoadJSON("", []byte(`{"unknown":1}`)); err == nil {
		t.Fatalf("JSON 应当返回错误")
	}
	if _, err := LoadYAML([]byte("unknown: 1\n")); err == nil {
		t.Fatalf("YAML 应当返回错误")
	}
	if _, err := LoadTOML([]byte("unknown = 1\n")); err == nil {
		t.Fatalf("TOML 应当返回错误")
	}
	if _, err := Load(writeFile(t, "config.ini", "x=1")); err == nil {
		t.Fatalf("不支持的扩展名应失败")
	}
	if _, err := LoadJSON("", nil); err == nil {
		t.Fatalf("无来源应失败")
	}
}

// UT-CFG-04: ENV 覆盖部分字段
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"ANTIOCHUS_INPUTS=a,b",
		"ANTIOCHUS_CONCURRENCY=3",
		"ANTIOCHUS_HYGIENE=false",
		"ANTIOCHUS_COMPONENTS_STORE=sqlite",
		`ANTIOCHUS_OPTIONS_STORE_JSON={"dsn":"x.db"}`,
		"ANTIOCHUS_OUTPUT=",
		"OTHER_CONCURRENCY=9",
	}
	over, err := EnvOverlay(env)
	if err != nil {
		t.Fatalf("EnvOverlay 错误: %v", err)
	}
	if over.Concurrency != 3 || len(over.Inputs) != 2 || over.Components.Store != "sqlite" {
		t.Fatalf("覆盖结果不正确: %+v", over)
	}
	if over.Hygiene == nil || *over.Hygiene {
		t.Fatalf("HYGIENE=false 应被记录")
	}
	if over.Output != "" {
		t.Fatalf("空值不应覆盖: %q", over.Output)
	}
	for _, bad := range []string{"ANTIOCHUS_CONCURRENCY=x", "ANTIOCHUS_VERBOSE=maybe", "ANTIOCHUS_OPTIONS_RIPPER_JSON={"} {
		if _, err := EnvOverlay([]string{bad}); err == nil {
			t.Fatalf("%s 应失败", bad)
		}
	}
}

// UT-CFG-05: Merge 优先级，false 的 Hygiene 不被丢弃
func TestMerge(t *testing.T) {
	off := false
	base := Defaults()
	base.Inputs = []string{"a"}
	out := Merge(base, Config{Hygiene: &off, Knowledge: "kb.csv", Components: Components{Store: "sqlite"}})
	if out.HygieneEnabled() || out.Knowledge != "kb.csv" {
		t.Fatalf("覆盖失败: %+v", out)
	}
	if out.Components.Store != "sqlite" || out.Components.Reader != "auto" {
		t.Fatalf("组件名合并错误: %+v", out.Components)
	}
	if len(out.Inputs) != 1 || out.Output != "knowledge.csv" {
		t.Fatalf("未设置字段不应被覆盖: %+v", out)
	}
}

// 补充覆盖: splitComma 与 atoi
func TestSplitCommaAtoi(t *testing.T) {
	parts := splitComma("a, b , ,c")
	if len(parts) != 3 || parts[1] != "b" {
		t.Fatalf("splitComma 结果错误: %v", parts)
	}
	if v, err := atoi("10"); err != nil || v != 10 {
		t.Fatalf("atoi 失败: %v %d", err, v)
	}
}

// 补充覆盖: Defaults 与 cloneRaw
func TestDefaultsClone(t *testing.T) {
	d := Defaults()
	if d.Components.Reader != "auto" || d.Components.Store != "csv" || d.Components.Ripper != "nmap" {
		t.Fatalf("默认组件错误: %+v", d.Components)
	}
	src := []byte("abc")
	dst := cloneRaw(src)
	src[0] = 'x'
	if string(dst) != "abc" {
		t.Fatalf("cloneRaw 未复制")
	}
}

// UT-CFG-06: Validate 错误分支
func TestValidateErrors(t *testing.T) {
	if err := Validate(Config{}); err == nil {
		t.Fatal("空配置应失败")
	}
	cases := map[string]func(*Config){
		"混用 '-'":            func(c *Config) { c.Inputs = []string{"-", "a"} },
		"空输入路径":             func(c *Config) { c.Inputs = []string{" "} },
		"无输入":               func(c *Config) { c.Inputs = nil },
		"无输出":               func(c *Config) { c.Output = "" },
		"并发为 0":             func(c *Config) { c.Concurrency = 0 },
		"预览为负":              func(c *Config) { c.PreviewChars = -1 },
		"未知日志级别":            func(c *Config) { c.Logging.Level = "loud" },
		"未注册 ripper":        func(c *Config) { c.Components.Ripper = "sqlmap" },
		"未注册 store":         func(c *Config) { c.Components.Store = "mongo" },
		"hygiene_only 无知识表": func(c *Config) { c.HygieneOnly = true },
	}
	for name, mutate := range cases {
		cfg := DefaultTemplateConfig()
		mutate(&cfg)
		if err := Validate(cfg); err == nil {
			t.Fatalf("%s 应失败", name)
		}
	}
	cfg := DefaultTemplateConfig()
	cfg.Inputs = nil
	cfg.HygieneOnly = true
	cfg.Knowledge = "kb.csv"
	if err := Validate(cfg); err != nil {
		t.Fatalf("hygiene_only 不需要输入: %v", err)
	}
}

// UT-CFG-07: 模板可直接装配
func TestAssembleTemplate(t *testing.T) {
	comp, set, err := Assemble(DefaultTemplateConfig())
	if err != nil {
		t.Fatalf("装配失败: %v", err)
	}
	if comp.Reader == nil || comp.Decoder == nil || comp.Ripper == nil || comp.Store == nil {
		t.Fatalf("组件缺失: %+v", comp)
	}
	if comp.Ripper.Name() != "nmap" || !comp.Ripper.NeedsCleaning() {
		t.Fatalf("ripper 选项错误: %s", comp.Ripper.Name())
	}
	if set.Output != contract.ArtifactID("knowledge.csv") || !set.Hygiene || set.Concurrency != 1 || set.PreviewChars != 500 {
		t.Fatalf("Settings 错误: %+v", set)
	}
}

// UT-CFG-08: 组件选项错误在装配期暴露
func TestAssembleOptionErrors(t *testing.T) {
	cfg := DefaultTemplateConfig()
	cfg.Options.Ripper = []byte(`{"keyword":"nmap","bogus":1}`)
	if _, _, err := Assemble(cfg); err == nil {
		t.Fatalf("未知 ripper 选项应失败")
	}
	cfg = DefaultTemplateConfig()
	cfg.Components.Store = "postgres"
	cfg.Options.Store = []byte(`{}`)
	if _, _, err := Assemble(cfg); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("postgres 无 dsn 应为 ErrInvalidInput: %v", err)
	}
}

// UT-CFG-09: hygiene-only 只构造 Ripper/Store
func TestAssembleHygieneOnly(t *testing.T) {
	cfg := Defaults()
	cfg.HygieneOnly = true
	cfg.Knowledge = "kb.csv"
	cfg.Components.Store = "sqlite"
	cfg.Options.Store = []byte(`{"dsn":"` + filepath.ToSlash(filepath.Join(t.TempDir(), "kb.db")) + `"}`)
	comp, set, err := Assemble(cfg)
	if err != nil {
		t.Fatalf("装配失败: %v", err)
	}
	if c, ok := comp.Store.(interface{ Close() error }); ok {
		defer c.Close()
	}
	if comp.Reader != nil || comp.Decoder != nil {
		t.Fatalf("hygiene-only 不应构造 reader/decoder")
	}
	if !set.HygieneOnly || set.Knowledge != "kb.csv" {
		t.Fatalf("Settings 错误: %+v", set)
	}
}

func TestEffectiveKV(t *testing.T) {
	kv := EffectiveKV(Config{Inputs: []string{"a", "b"}, Logging: Logging{Level: "DEBUG"}})
	if kv["inputs_count"] != "2" || kv["store"] != "csv" || kv["log_level"] != "debug" || kv["hygiene"] != "true" {
		t.Fatalf("摘要错误: %v", kv)
	}
}
