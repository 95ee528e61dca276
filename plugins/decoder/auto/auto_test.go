package auto

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"antiochus/pkg/contract"
)

func zipOf(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		id   contract.FileID
		head []byte
		want string
	}{
		{"notes.TXT", []byte{0xff, 0xfe}, kindText},
		{"a/b/page.htm", nil, kindHTML},
		{"https://nmap.org/book/man.html?x=1#y", nil, kindHTML},
		{"https://nmap.org/book/", []byte("<!DOCTYPE html><p>x</p>"), kindHTML},
		{"stdin", []byte("%PDF-1.7\n..."), kindPDF},
		{"stdin", []byte("just some text"), kindText},
		{"stdin", []byte{0x00, 0x01, 0xff, 0xfe, 0x80}, ""},
		{"book", nil, kindText},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.id, c.head), string(c.id))
	}
	assert.Equal(t, kindDOCX, KindOf("upload", zipOf(t, "word/document.xml", "<w:document/>")))
	assert.Equal(t, kindEPUB, KindOf("upload", zipOf(t, "mimetype", "application/epub+zip")))
	assert.Equal(t, "", KindOf("upload", zipOf(t, "random.bin", "x")))
}

func TestDecodeNormalizesAndTruncates(t *testing.T) {
	// 全角字母与连字经 NFKC 折叠为 ASCII
	in := "ｎｍａｐ -sS 10.0.0.1 ﬁnd"
	got, err := New(nil).Decode(context.Background(), "doc.txt", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "nmap -sS 10.0.0.1 find", got)

	raw, err := New(&Options{NoNormalize: true}).Decode(context.Background(), "doc.txt", strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, in, raw)

	// 截断落在多字节字符中间时回退到 rune 边界
	cut, err := New(&Options{MaxBytes: 4}).Decode(context.Background(), "doc.txt", strings.NewReader("ab漢字"))
	require.NoError(t, err)
	assert.Equal(t, "ab", cut)
}

func TestDecodeDispatchAndErrors(t *testing.T) {
	got, err := New(nil).Decode(context.Background(), "page.html", strings.NewReader("<p>nmap -A host</p>"))
	require.NoError(t, err)
	assert.Equal(t, "nmap -A host", got)

	_, err = New(nil).Decode(context.Background(), "blob", bytes.NewReader([]byte{0x00, 0x01, 0xff, 0xfe, 0x80}))
	assert.ErrorIs(t, err, contract.ErrContent)

	_, err = New(nil).Decode(context.Background(), "broken.pdf", strings.NewReader("nope"))
	assert.ErrorIs(t, err, contract.ErrContent)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("漢", 2))
}
