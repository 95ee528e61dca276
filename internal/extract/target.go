package extract

import "regexp"

// IPv4 点分四段（每段 1-3 位数字），可选 /N（1-2 位）CIDR 后缀。
// 两端要求单词边界，避免截取更长数字串的一部分。
var ipv4CIDR = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?\b`)

// ipv4Token: 整个 token 即为数字地址。
var ipv4Token = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}(?:/\d{1,2})?$`)

// ExtractTarget 返回 span 中自左向右首个 IPv4(/CIDR) 目标；无匹配时 ok=false，不视为错误。
func ExtractTarget(span string) (target string, ok bool) {
	m := ipv4CIDR.FindString(span)
	return m, m != ""
}
