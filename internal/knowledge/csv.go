package knowledge

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"antiochus/pkg/contract"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV 解析带表头的 CSV 知识表（RFC 4180 引号规则）。
// 空输入得到无列空表；表头缺失/行宽不一/引号错误等一律 ErrFormat。
func DecodeCSV(r io.Reader) (contract.Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 0
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return contract.Table{}, nil
	}
	if err != nil {
		return contract.Table{}, fmt.Errorf("%w: header: %v", contract.ErrFormat, err)
	}
	t := contract.Table{Columns: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contract.Table{}, fmt.Errorf("%w: %v", contract.ErrFormat, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := contract.ValidateTable(t); err != nil {
		return contract.Table{}, err
	}
	return t, nil
}

// EncodeCSV 以表头 + 每行一条记录写出；含分隔符/引号/换行的值加引号。
// 无列的表写出空内容。
func EncodeCSV(w io.Writer, t contract.Table) error {
	if len(t.Columns) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVReader 返回一个流式产出 CSV 字节的 Reader（经 io.Pipe，编码错误由读端收到）。
// 调用方必须 Close，否则编码 goroutine 可能阻塞。
func CSVReader(t contract.Table) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(EncodeCSV(pw, t))
	}()
	return pr
}
