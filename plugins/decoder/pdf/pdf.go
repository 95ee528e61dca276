package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"antiochus/pkg/contract"
)

// Decoder 抽取 PDF 各页纯文本，页间以换行分隔。
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	// 解析库对损坏文件可能 panic
	defer func() {
		if p := recover(); p != nil {
			text, err = "", contract.ContentError(fileID, fmt.Errorf("pdf: %v", p))
		}
	}()
	doc, err := lpdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", contract.ContentError(fileID, fmt.Errorf("page %d: %w", i, err))
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}
