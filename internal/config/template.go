package config

import "encoding/json"

// DefaultTemplateConfig 返回一个可直接运行的默认配置模板：
// - 默认输入为 STDIN（"-"），知识表写到 ./knowledge.csv；
// - 组件名采用仓库内置实现；
// - 选项列出全部键，值为中性默认值（0/空表示使用组件缺省）。
func DefaultTemplateConfig() Config {
	d := Defaults()
	on := true
	cfg := Config{
		Inputs:       []string{"-"},
		Output:       d.Output,
		Concurrency:  d.Concurrency,
		Hygiene:      &on,
		PreviewChars: 500,
		Logging:      Logging{Level: "info"},
		Components:   d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "fs": {
    "buf_size": 65536,
    "exclude_dir_names": [".git", "node_modules", "vendor"],
    "allow_exts": []
  },
  "web": {
    "timeout_sec": 30,
    "rps": 2,
    "burst": 1,
    "cache_size": 128,
    "max_body_bytes": 33554432,
    "user_agent": ""
  }
}`)
	cfg.Options.Decoder = json.RawMessage(`{
  "max_bytes": 0,
  "no_normalize": false
}`)
	cfg.Options.Ripper = json.RawMessage(`{
  "keyword": "nmap",
  "context_radius": 0,
  "extra_flags": [],
  "vocabulary_path": "",
  "clean": true
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "root": "",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	// csv store 无配置项，保持空对象
	cfg.Options.Store = json.RawMessage(`{}`)
	return cfg
}
