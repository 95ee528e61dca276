package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "antiochus/internal/config"
	"antiochus/internal/diag"
	"antiochus/internal/pipeline"
)

var pipelineRun = pipeline.Run

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

// 退出码
const (
	exitOK      = 0
	exitRuntime = 1
	exitNoInput = 2
	exitConfig  = 3
)

// cliFlags 为命令行覆盖；零值表示未设置。
type cliFlags struct {
	config      string
	files       []string
	dirs        []string
	urls        []string
	output      string
	knowledge   string
	forget      bool
	noHygiene   bool
	verbose     bool
	ripper      string
	store       string
	concurrency int
	status      bool
	initDir     string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 解析参数并执行，返回退出码。SIGINT/SIGTERM 取消运行上下文。
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	code := exitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs(normalizeInitArg(args))
	if err := cmd.ExecuteContext(ctx); err != nil {
		// 旗标解析错误；cobra 已输出错误与用法
		return exitConfig
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var f cliFlags
	root := &cobra.Command{
		Use:   "antiochus [roots...]",
		Short: "从书籍与文档中抽取 nmap 命令，构建知识表",
		Long: "antiochus 读取文件、目录或 URL（\"-\" 表示 STDIN），识别其中的 nmap 命令，\n" +
			"拆分为命令/目标/描述并附带上下文，合并到知识表后持久化。",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = execute(cmd.Context(), &f, args)
			return nil
		},
	}
	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（.json/.yaml/.yml/.toml）；缺省读取 ./config.json（若存在）")
	fl.StringArrayVar(&f.files, "file", nil, "单个文档路径（可重复）")
	fl.StringArrayVar(&f.dirs, "dir", nil, "文档目录（递归，可重复）")
	fl.StringArrayVar(&f.urls, "url", nil, "http(s) 文档地址（可重复）")
	fl.StringVarP(&f.output, "output", "o", "", "知识表输出位置（覆盖配置；默认 knowledge.csv）")
	fl.StringVar(&f.knowledge, "knowledge", "", "要扩展的已有知识表")
	fl.BoolVar(&f.forget, "forget", false, "仅清理：加载 --knowledge，删除空键与重复键后写出")
	fl.BoolVar(&f.noHygiene, "no-hygiene", false, "合并后不执行清理")
	fl.BoolVar(&f.verbose, "verbose", false, "在终端预览文档文本与抽取记录")
	fl.StringVar(&f.ripper, "ripper", "", "抽取器名称（覆盖配置）")
	fl.StringVar(&f.store, "store", "", "知识表存储：csv/sqlite/postgres（覆盖配置）")
	fl.IntVar(&f.concurrency, "concurrency", 0, "并发度（覆盖配置）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 逐行输出")
	fl.StringVar(&f.initDir, "init-config", "", "在指定目录生成默认 config.json 与 .env 模板（已存在则不覆盖）；不带值时为当前目录")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "打印版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "antiochus %s\n", version)
		},
	})
	return root
}

func execute(ctx context.Context, f *cliFlags, roots []string) int {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fprintf(os.Stderr, "提示：.env 解析失败（已跳过）：%v\n", err)
	}
	// 先以默认级别占位，配置合并后重建
	logger := diag.NewLogger(corrID, "info")
	defer func() { _ = logger.Close() }()

	// --init-config: 生成模板并退出
	if dir := strings.TrimSpace(f.initDir); dir != "" {
		if err := initConfig(dir); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("config", string(diag.Classify(err)), "init config", &start)
			return exitConfig
		}
		return exitOK
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	// ENV 覆盖
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)
	cfg = cfgpkg.Merge(cfg, cliOverlay(f, roots))

	if !cfg.HygieneOnly && len(cfg.Inputs) == 0 {
		fprintf(os.Stderr, "未指定输入：给出 roots、--file、--dir 或 --url（或使用 --forget --knowledge 仅清理）\n")
		return exitNoInput
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(os.Stderr, cfg)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	// 使用最终配置重建 logger
	_ = logger.Close()
	logger = diag.NewLoggerIn(logDir(cfg.Logging.Dir), corrID, cfg.Logging.Level)

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "first error", &start)
		return exitConfig
	}
	defer closeStore(comp.Store)

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", cfgpkg.EffectiveKV(cfg))

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "run", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return exitRuntime
	}
	t.Finish("run", int64(sum.Rows))
	diag.IncOp("pipeline", "run", "success")
	diag.ObserveDuration("pipeline", "run", time.Since(start).Milliseconds())
	if !f.status {
		fmt.Printf("documents=%d failed=%d records=%d removed=%d rows=%d\n",
			sum.Documents, sum.Failed, sum.Records, sum.Removed, sum.Rows)
	}
	return exitOK
}

// loadConfig: Defaults → 配置文件（--config / ANTIOCHUS_CONFIG_FILE / ./config.*）
// 或 ANTIOCHUS_CONFIG_JSON。
func loadConfig(f *cliFlags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()
	path := strings.TrimSpace(f.config)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE"))
	}
	if path == "" {
		for _, name := range []string{"config.json", "config.yaml", "config.yml", "config.toml"} {
			if st, err := os.Stat(name); err == nil && !st.IsDir() {
				path = name
				break
			}
		}
	}
	var (
		base cfgpkg.Config
		err  error
	)
	switch {
	case path != "":
		base, err = cfgpkg.Load(path)
	case os.Getenv(cfgpkg.EnvPrefix+"CONFIG_JSON") != "":
		base, err = cfgpkg.LoadJSON("", []byte(os.Getenv(cfgpkg.EnvPrefix+"CONFIG_JSON")))
	default:
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, base), nil
}

// cliOverlay 把旗标转换为最高优先级的覆盖层。
// 输入顺序：位置参数、--file、--dir、--url。
func cliOverlay(f *cliFlags, roots []string) cfgpkg.Config {
	var over cfgpkg.Config
	for _, group := range [][]string{roots, f.files, f.dirs, f.urls} {
		over.Inputs = append(over.Inputs, group...)
	}
	over.Output = f.output
	over.Knowledge = f.knowledge
	over.HygieneOnly = f.forget
	if f.noHygiene {
		off := false
		over.Hygiene = &off
	}
	over.Verbose = f.verbose
	over.Components.Ripper = f.ripper
	over.Components.Store = f.store
	if f.concurrency > 0 {
		over.Concurrency = f.concurrency
	}
	return over
}

// logDir: 空为默认 logs/；"-" 写 stderr。
func logDir(dir string) string {
	switch d := strings.TrimSpace(dir); d {
	case "":
		return diag.DefaultLogDir
	case "-":
		return ""
	default:
		return d
	}
}

func closeStore(s any) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "有效配置:\n%s\n", b)
	return err
}

func initConfig(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		return err
	}
	// .env 模板失败不影响配置生成
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

// writeConfig 写出 JSON 配置；path 为 "-" 时写 stdout；已存在文件不覆盖。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.Write(b)
	return err
}

// normalizeInitArg: 允许 --init-config 不带值（默认当前目录）。
//
//	--init-config                => --init-config=.
//	--init-config out            => --init-config=out
//	--init-config=out
func normalizeInitArg(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a != "--init-config" && a != "-init-config" {
			out = append(out, a)
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, "--init-config="+args[i+1])
			i++
			continue
		}
		out = append(out, "--init-config=.")
	}
	return out
}

// writeDotEnv 生成 .env 模板（已存在则跳过，不合并）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# antiochus .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("ANTIOCHUS_CONFIG_FILE=\n")
	b.WriteString("ANTIOCHUS_CONFIG_JSON=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "OUTPUT", "KNOWLEDGE", "CONCURRENCY", "HYGIENE", "VERBOSE", "PREVIEW_CHARS", "LOG_LEVEL", "LOG_DIR"} {
		b.WriteString(cfgpkg.EnvPrefix + k + "=\n")
	}
	b.WriteString("\n# 组件选择与选项（JSON）\n")
	for _, c := range []string{"READER", "DECODER", "RIPPER", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "COMPONENTS_" + c + "=\n")
	}
	for _, c := range []string{"READER", "DECODER", "RIPPER", "WRITER", "STORE"} {
		b.WriteString(cfgpkg.EnvPrefix + "OPTIONS_" + c + "_JSON=\n")
	}
	b.WriteString("\n# s3 writer 凭据\n")
	b.WriteString("ANTIOCHUS_S3_ACCESS_KEY=\n")
	b.WriteString("ANTIOCHUS_S3_SECRET_KEY=\n")

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()
	_, err = file.WriteString(b.String())
	return err
}

// preflightCheckOutputDir: fs writer + csv store 时，启动前检查输出目录可写性。
// 目录存在则尝试创建并删除临时文件；不存在则检查最近的已存在祖先目录。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	d := cfgpkg.Defaults().Components
	if effName(cfg.Components.Writer, d.Writer) != "fs" || effName(cfg.Components.Store, d.Store) != "csv" {
		return nil
	}
	var wopts struct {
		Root string `json:"root"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := filepath.Dir(filepath.Join(strings.TrimSpace(wopts.Root), strings.TrimSpace(cfg.Output)))
	for {
		st, err := os.Stat(dir)
		if err == nil {
			if !st.IsDir() {
				return fmt.Errorf("路径存在但不是目录: %s", dir)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		dir = parent
	}
	tmp, err := os.CreateTemp(dir, ".wcheck-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}

func effName(got, def string) string {
	if got = strings.TrimSpace(got); got == "" {
		return def
	}
	return got
}
