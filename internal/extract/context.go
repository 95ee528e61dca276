package extract

import (
	"strings"
	"unicode/utf8"
)

var newlineFolder = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Window 返回 text[start:end] 两侧各扩展 radius 个字符（按 rune 计）后的片段，
// 超出文本边界时截断；换行折叠为空格并去除首尾空白。
// start/end 越界时先夹取到合法范围。
func Window(text string, start, end, radius int) string {
	start = clamp(start, 0, len(text))
	end = clamp(end, start, len(text))
	lo := start
	for n := 0; n < radius && lo > 0; n++ {
		_, sz := utf8.DecodeLastRuneInString(text[:lo])
		lo -= sz
	}
	hi := end
	for n := 0; n < radius && hi < len(text); n++ {
		_, sz := utf8.DecodeRuneInString(text[hi:])
		hi += sz
	}
	return strings.TrimSpace(newlineFolder.Replace(text[lo:hi]))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
