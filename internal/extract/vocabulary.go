package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary: 不可变的 flag 词表。成员判定为大小写敏感的精确匹配（不做归一化）。
// 值为 true 表示该 token 消费下一个 token 作为其取值。
type Vocabulary struct {
	m map[string]bool
}

// NewVocabulary 由 consumes 列表（消费参数的 token）与 plain 列表（普通成员）构造词表。
// 同一 token 同时出现时以 consumes 为准。空串被忽略。
func NewVocabulary(consumes, plain []string) Vocabulary {
	m := make(map[string]bool, len(consumes)+len(plain))
	for _, t := range plain {
		if _, ok := m[t]; !ok && t != "" {
			m[t] = false
		}
	}
	for _, t := range consumes {
		if t != "" {
			m[t] = true
		}
	}
	return Vocabulary{m: m}
}

// Lookup 返回 token 是否为成员以及是否消费参数。
func (v Vocabulary) Lookup(tok string) (member, consumes bool) {
	c, ok := v.m[tok]
	return ok, c
}

// Len 返回成员数。
func (v Vocabulary) Len() int { return len(v.m) }

// Merge 返回合并后的新词表；other 中的 consumes 标记覆盖当前值为 true。
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	m := make(map[string]bool, len(v.m)+len(other.m))
	for k, c := range v.m {
		m[k] = c
	}
	for k, c := range other.m {
		m[k] = m[k] || c
	}
	return Vocabulary{m: m}
}

// VocabularyFile: 词表文件（YAML）。
//
//	consumes_argument: [-oX, -iL, --script]
//	flags: [-sS, -sV]
type VocabularyFile struct {
	ConsumesArgument []string `yaml:"consumes_argument"`
	Flags            []string `yaml:"flags"`
}

// LoadVocabulary 从 YAML 文件读取词表。未知字段报错。
func LoadVocabulary(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocabulary{}, err
	}
	defer f.Close()
	var vf VocabularyFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&vf); err != nil && !errors.Is(err, io.EOF) {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	trim := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return NewVocabulary(trim(vf.ConsumesArgument), trim(vf.Flags)), nil
}
