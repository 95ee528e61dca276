package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"antiochus/pkg/contract"
)

// DefaultContextRadius 为上下文窗口默认半径（字符数）。
const DefaultContextRadius = 100

// Scanner: 候选命令扫描器（纯函数，无状态）。
// 规则：
//  1. 关键字大小写不敏感，且位于 token 边界（前为文本开头或空白，后为空白或文本结尾）；
//  2. 片段终点取「行尾」与「下一个关键字出现位置」中较早者，并去掉尾部空白；
//  3. 片段仅一个 token 时丢弃（正文中提及关键字）；
//  4. 第二个 token 以 '-' 开头或为纯数字时接受，否则视为误报丢弃。
type Scanner struct {
	keyword string
	radius  int
}

// NewScanner 创建扫描器。radius<=0 使用 DefaultContextRadius。
func NewScanner(keyword string, radius int) *Scanner {
	if radius <= 0 {
		radius = DefaultContextRadius
	}
	return &Scanner{keyword: keyword, radius: radius}
}

// Keyword 返回命令关键字。
func (s *Scanner) Keyword() string { return s.keyword }

// Scan 自左向右返回被接受的候选片段。对同一文本可重复调用，结果一致。
func (s *Scanner) Scan(text string) []contract.Span {
	occ := s.occurrences(text)
	if len(occ) == 0 {
		return nil
	}
	spans := make([]contract.Span, 0, len(occ))
	for i, start := range occ {
		end := len(text)
		if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
			end = start + nl
		}
		if i+1 < len(occ) && occ[i+1] < end {
			end = occ[i+1]
		}
		for end > start {
			r, sz := utf8.DecodeLastRuneInString(text[start:end])
			if !unicode.IsSpace(r) {
				break
			}
			end -= sz
		}
		raw := text[start:end]
		fields := strings.Fields(raw)
		if len(fields) < 2 || !commandLike(fields[1]) {
			continue
		}
		spans = append(spans, contract.Span{
			Raw:     raw,
			Start:   start,
			End:     end,
			Context: Window(text, start, end, s.radius),
		})
	}
	return spans
}

// occurrences 返回所有位于 token 边界的关键字起始偏移（升序）。
func (s *Scanner) occurrences(text string) []int {
	k := len(s.keyword)
	if k == 0 || len(text) < k {
		return nil
	}
	var out []int
	for i := 0; i+k <= len(text); i++ {
		if !strings.EqualFold(text[i:i+k], s.keyword) {
			continue
		}
		if i > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:i])
			if !unicode.IsSpace(r) {
				continue
			}
		}
		if i+k < len(text) {
			r, _ := utf8.DecodeRuneInString(text[i+k:])
			if !unicode.IsSpace(r) {
				continue
			}
		}
		out = append(out, i)
		i += k - 1
	}
	return out
}

// commandLike: 第二个 token 的接受条件。
func commandLike(tok string) bool {
	return strings.HasPrefix(tok, "-") || isNumeric(tok)
}

// isNumeric: 纯数字 token，或整体为数字地址（IPv4，可带 CIDR 后缀）。
func isNumeric(tok string) bool {
	return isDigits(tok) || ipv4Token.MatchString(tok)
}

// isDigits: 非空且全部为 ASCII 数字。
func isDigits(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
