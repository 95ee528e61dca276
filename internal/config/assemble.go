package config

import (
	"errors"
	"fmt"
	"strings"

	"antiochus/internal/diag"
	"antiochus/internal/pipeline"
	"antiochus/pkg/contract"
	"antiochus/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Output) == "" {
		return errors.New("config: output empty")
	}
	if cfg.HygieneOnly {
		if strings.TrimSpace(cfg.Knowledge) == "" {
			return errors.New("config: hygiene_only requires knowledge")
		}
	} else if len(cfg.Inputs) == 0 {
		return errors.New("config: inputs empty")
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.PreviewChars < 0 {
		return errors.New("config: preview_chars must be >= 0")
	}
	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !validLevel(lv) {
		return fmt.Errorf("config: unknown logging level %q", lv)
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Decoder, d.Decoder); registry.Decoder[name] == nil {
		return fmt.Errorf("config: decoder %q not registered", name)
	}
	if name := effName(cfg.Components.Ripper, d.Ripper); registry.Ripper[name] == nil {
		return fmt.Errorf("config: ripper %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	if name := effName(cfg.Components.Store, d.Store); registry.Store[name] == nil {
		return fmt.Errorf("config: store %q not registered", name)
	}
	return nil
}

func validLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
// 返回的 Store 若实现 io.Closer，由调用方负责关闭。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 有效名称
	d := Defaults().Components
	rn := effName(cfg.Components.Reader, d.Reader)
	dn := effName(cfg.Components.Decoder, d.Decoder)
	pn := effName(cfg.Components.Ripper, d.Ripper)
	wn := effName(cfg.Components.Writer, d.Writer)
	sn := effName(cfg.Components.Store, d.Store)

	var comp pipeline.Components
	if !cfg.HygieneOnly {
		r, err := registry.Reader[rn](cfg.Options.Reader)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %s: %w", rn, err)
		}
		dec, err := registry.Decoder[dn](cfg.Options.Decoder)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("decoder %s: %w", dn, err)
		}
		comp.Reader, comp.Decoder = r, dec
	}
	// Ripper 在 hygiene-only 下同样构造：选项错误应尽早暴露，且用于终端展示
	rip, err := registry.Ripper[pn](cfg.Options.Ripper)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("ripper %s: %w", pn, err)
	}
	comp.Ripper = rip
	w, err := registry.Writer[wn](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %s: %w", wn, err)
	}
	st, err := registry.Store[sn](cfg.Options.Store, w)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("store %s: %w", sn, err)
	}
	comp.Store = st

	set := pipeline.Settings{
		Inputs:       cloneStrings(cfg.Inputs),
		Knowledge:    contract.ArtifactID(strings.TrimSpace(cfg.Knowledge)),
		Output:       contract.ArtifactID(strings.TrimSpace(cfg.Output)),
		Concurrency:  cfg.Concurrency,
		Hygiene:      cfg.HygieneEnabled(),
		HygieneOnly:  cfg.HygieneOnly,
		Verbose:      cfg.Verbose,
		PreviewChars: cfg.PreviewChars,
	}
	return comp, set, nil
}

// EffectiveKV 返回用于 debug 日志的有效配置摘要（不含 Options 内容，避免泄露密钥）。
func EffectiveKV(cfg Config) map[string]string {
	d := Defaults().Components
	return map[string]string{
		"inputs_count": fmt.Sprintf("%d", len(cfg.Inputs)),
		"output":       cfg.Output,
		"knowledge":    cfg.Knowledge,
		"concurrency":  fmt.Sprintf("%d", cfg.Concurrency),
		"hygiene":      fmt.Sprintf("%t", cfg.HygieneEnabled()),
		"hygiene_only": fmt.Sprintf("%t", cfg.HygieneOnly),
		"log_level":    diag.ParseLevel(cfg.Logging.Level).String(),
		"reader":       effName(cfg.Components.Reader, d.Reader),
		"decoder":      effName(cfg.Components.Decoder, d.Decoder),
		"ripper":       effName(cfg.Components.Ripper, d.Ripper),
		"writer":       effName(cfg.Components.Writer, d.Writer),
		"store":        effName(cfg.Components.Store, d.Store),
	}
}

func effName(got, def string) string {
	if got = strings.TrimSpace(got); got == "" {
		return def
	}
	return got
}
