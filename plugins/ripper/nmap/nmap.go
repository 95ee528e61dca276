package nmap

import (
	"strings"

	"antiochus/internal/extract"
	"antiochus/pkg/contract"
)

// 默认关键字。
const DefaultKeyword = "nmap"

// consumingFlags 为 nmap 中需要紧随参数值的已知标志；"nmap" 自身也视为吞参成员。
var consumingFlags = []string{
	"nmap",
	// 输出
	"-oX", "-oN", "-oG", "-oA", "--append-output",
	// 目标列表输入
	"-iL", "--excludefile",
	// 脚本
	"--script", "--script-args", "--script-help",
	// 版本与系统探测
	"--version-intensity", "--osscan-limit", "--osscan-guess",
	// 主机发现
	"-PS", "-PA", "-PU", "-PR", "-PP", "-PM",
	// 防火墙/IDS 规避
	"-D", "-S", "--proxies", "--data-length", "--source-port", "--ip-options", "--ttl",
	// 时序与性能
	"--min-hostgroup", "--max-hostgroup", "--min-parallelism", "--max-parallelism", "--scan-delay",
	"--max-scan-delay", "--host-timeout",
	// 其他
	"-p", "-g", "--min-rate", "--max-rate", "--resume", "-f",
}

// Options 为 nmap 抽取器的可选项。
// 约束：
// - Keyword 为空时使用 "nmap"；
// - ContextRadius<=0 时使用 100；
// - ExtraFlags 追加为吞参成员；VocabularyPath 指向 YAML 词表并与内置词表合并；
// - Clean 缺省为 true（产出清洗记录）。
type Options struct {
	Keyword        string   `json:"keyword,omitempty"`
	ContextRadius  int      `json:"context_radius,omitempty"`
	ExtraFlags     []string `json:"extra_flags,omitempty"`
	VocabularyPath string   `json:"vocabulary_path,omitempty"`
	Clean          *bool    `json:"clean,omitempty"`
}

// Nmap 实现 contract.Ripper。
type Nmap struct {
	keyword string
	clean   bool
	scan    *extract.Scanner
	tok     *extract.Tokenizer
}

// Vocabulary 返回内置标志词表（不含 ExtraFlags 与外部词表）。
func Vocabulary() extract.Vocabulary {
	return extract.NewVocabulary(consumingFlags, nil)
}

// New 构造抽取器；词表文件不可读或不合法时返回错误。
func New(opts *Options) (*Nmap, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	kw := strings.TrimSpace(o.Keyword)
	if kw == "" {
		kw = DefaultKeyword
	}
	radius := o.ContextRadius
	if radius <= 0 {
		radius = extract.DefaultContextRadius
	}
	clean := true
	if o.Clean != nil {
		clean = *o.Clean
	}
	vocab := Vocabulary().Merge(extract.NewVocabulary(append([]string{kw}, o.ExtraFlags...), nil))
	if p := strings.TrimSpace(o.VocabularyPath); p != "" {
		ext, err := extract.LoadVocabulary(p)
		if err != nil {
			return nil, err
		}
		vocab = vocab.Merge(ext)
	}
	return &Nmap{
		keyword: kw,
		clean:   clean,
		scan:    extract.NewScanner(kw, radius),
		tok:     extract.NewTokenizer(kw, vocab),
	}, nil
}

func (n *Nmap) Name() string { return n.keyword }

func (n *Nmap) Scan(text string) []contract.Span { return n.scan.Scan(text) }

func (n *Nmap) Tokenize(command string) (string, string) { return n.tok.Tokenize(command) }

func (n *Nmap) ExtractTarget(span string) (string, bool) { return extract.ExtractTarget(span) }

func (n *Nmap) NeedsCleaning() bool { return n.clean }

var _ contract.Ripper = (*Nmap)(nil)
