package html

import (
	"context"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"antiochus/pkg/contract"
)

// Decoder 抽取 HTML/XHTML 的可见文本。
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := Text(r)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	return s, nil
}

// 不产出文本的元素。
var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Svg: true,
}

// 块级元素前后断行。
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Pre: true, atom.Blockquote: true, atom.Tr: true, atom.Table: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Dd: true, atom.Dt: true,
	atom.Dl: true, atom.Hr: true, atom.Figcaption: true, atom.Body: true, atom.Title: true,
}

// Text 返回文档的可见文本。
// 约束：
// - 普通文本中的空白串折叠为单个空格，保证单行命令不被源码换行拆开；
// - <pre> 内保留原样换行；
// - 块级元素产生换行，连续空行折叠为一行。
func Text(r io.Reader) (string, error) {
	doc, err := nethtml.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	walk(&b, doc, false)
	return tidy(b.String()), nil
}

func walk(b *strings.Builder, n *nethtml.Node, pre bool) {
	switch n.Type {
	case nethtml.TextNode:
		if pre {
			b.WriteString(n.Data)
		} else {
			b.WriteString(collapse(n.Data))
		}
		return
	case nethtml.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Pre {
			pre = true
		}
	case nethtml.CommentNode, nethtml.DoctypeNode:
		return
	}
	block := n.Type == nethtml.ElementNode && blocks[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c, pre)
	}
	if block {
		b.WriteByte('\n')
	} else if n.Type == nethtml.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
		b.WriteByte(' ')
	}
}

func collapse(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t' || last == '\r'
	out := strings.Join(strings.Fields(s), " ")
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

// tidy 去除各行首尾空白并折叠连续空行。
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
