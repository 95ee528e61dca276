package auto

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"antiochus/pkg/contract"
	"antiochus/plugins/decoder/docx"
	"antiochus/plugins/decoder/epub"
	dhtml "antiochus/plugins/decoder/html"
	"antiochus/plugins/decoder/pdf"
	"antiochus/plugins/decoder/txt"
)

// Options 为自动解码器的可选项。
type Options struct {
	// MaxBytes 为输出文本上限（字节，按 rune 边界截断）；<=0 不限制。
	MaxBytes int `json:"max_bytes,omitempty"`
	// NoNormalize 关闭 NFKC 归一化。
	NoNormalize bool `json:"no_normalize,omitempty"`
}

// Auto 按扩展名选择解码器，无法判定时按内容嗅探；结果做 NFKC 归一化。
type Auto struct {
	opts   Options
	byKind map[string]contract.Decoder
}

const (
	kindText = "text"
	kindHTML = "html"
	kindPDF  = "pdf"
	kindEPUB = "epub"
	kindDOCX = "docx"
)

var extKinds = map[string]string{
	".txt": kindText, ".text": kindText, ".md": kindText, ".log": kindText, ".rst": kindText,
	".html": kindHTML, ".htm": kindHTML, ".xhtml": kindHTML,
	".pdf":  kindPDF,
	".epub": kindEPUB,
	".docx": kindDOCX,
}

func New(opts *Options) *Auto {
	var o Options
	if opts != nil {
		o = *opts
	}
	return &Auto{opts: o, byKind: map[string]contract.Decoder{
		kindText: txt.New(),
		kindHTML: dhtml.New(),
		kindPDF:  pdf.New(),
		kindEPUB: epub.New(),
		kindDOCX: docx.New(),
	}}
}

func (a *Auto) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	kind := KindOf(fileID, b)
	dec, ok := a.byKind[kind]
	if !ok {
		return "", contract.ContentError(fileID, fmt.Errorf("unsupported document format"))
	}
	s, err := dec.Decode(ctx, fileID, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	if !a.opts.NoNormalize {
		s = norm.NFKC.String(s)
	}
	return truncate(s, a.opts.MaxBytes), nil
}

// KindOf 返回文档类别（text/html/pdf/epub/docx）；无法判定时返回空串。
// 优先扩展名（URL 取路径部分），其次内容嗅探。
func KindOf(fileID contract.FileID, head []byte) string {
	if k, ok := extKinds[strings.ToLower(path.Ext(docPath(fileID)))]; ok {
		return k
	}
	return sniff(head)
}

func docPath(id contract.FileID) string {
	s := string(id)
	if contract.IsURL(s) {
		if u, err := url.Parse(s); err == nil {
			return u.Path
		}
	}
	return s
}

func sniff(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte("%PDF-")):
		return kindPDF
	case bytes.HasPrefix(b, []byte("PK\x03\x04")):
		return sniffZip(b)
	}
	ct := http.DetectContentType(b)
	switch {
	case strings.HasPrefix(ct, "text/html"), strings.HasPrefix(ct, "text/xml"):
		return kindHTML
	case strings.HasPrefix(ct, "text/plain"):
		return kindText
	}
	if utf8.Valid(b) {
		return kindText
	}
	return ""
}

func sniffZip(b []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			return kindDOCX
		case "META-INF/container.xml", "mimetype":
			return kindEPUB
		}
	}
	return ""
}

// truncate 截断到不超过 max 字节的最长 rune 前缀。
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
