package extract

import (
	"strings"
)

// Tokenizer: 命令/描述分界的状态机。
//
// 对空白分隔的 token 自左向右扫描，token 属于命令部分当且仅当满足任一：
//
//	(a) 纯数字，或整体为 IPv4(/CIDR) 数字地址；
//	(b) 以 '-' 开头；
//	(c) 词表成员；
//	(d)/(e) 前一个被接受的 token 是消费参数的词表成员（expect 位）。
//
// 首个不满足的 token 起（含）全部归入描述。expect 位只对紧随的一个 token 生效；
// 取值 token 本身无需满足 (a)-(c)。
// 位于开头、与关键字大小写不敏感相等的 token 视作关键字本身（消费参数的成员）。
type Tokenizer struct {
	keyword string
	vocab   Vocabulary
}

// NewTokenizer 创建分词器。vocab 应包含 keyword 自身（消费参数）。
func NewTokenizer(keyword string, vocab Vocabulary) *Tokenizer {
	return &Tokenizer{keyword: keyword, vocab: vocab}
}

// Tokenize 返回规范命令与描述（均以单空格连接）。空白输入返回两个空串。
// 输出只依赖 command 与固定词表，调用间不保留状态。
func (t *Tokenizer) Tokenize(command string) (cleaned, description string) {
	toks := strings.Fields(command)
	if len(toks) == 0 {
		return "", ""
	}
	expect := false
	cut := len(toks)
	for i, tok := range toks {
		member, consumes := t.vocab.Lookup(tok)
		if i == 0 && !member && t.keyword != "" && strings.EqualFold(tok, t.keyword) {
			member, consumes = true, true
		}
		if !(isNumeric(tok) || strings.HasPrefix(tok, "-") || member || expect) {
			cut = i
			break
		}
		expect = member && consumes
	}
	return strings.Join(toks[:cut], " "), strings.Join(toks[cut:], " ")
}
