package txt

import (
	"context"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"antiochus/pkg/contract"
)

// Decoder 解码纯文本：按 BOM 识别 UTF-8/UTF-16（无 BOM 视为 UTF-8），统一换行为 \n。
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

var lineEnds = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func (d *Decoder) Decode(ctx context.Context, fileID contract.FileID, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tr := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	b, err := io.ReadAll(tr)
	if err != nil {
		return "", contract.ContentError(fileID, err)
	}
	return lineEnds.Replace(string(b)), nil
}
