package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"antiochus/pkg/contract"
)

// Decoder 抽取 word/document.xml 的段落文本，段落间以换行分隔。
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", contract.ContentError(fileID, errors.New("docx: word/document.xml missing"))
	}
	rc, err := doc.Open()
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	defer rc.Close()
	s, err := paragraphs(rc)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	return s, nil
}

// paragraphs 按 WordprocessingML 元素流抽取文本：w:t 为文本，w:tab 为制表符，
// w:br/w:cr 为换行，w:p 结束时换行。
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
