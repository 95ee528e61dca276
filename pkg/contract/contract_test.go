package contract

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"本地分隔符", filepath.Join("a", "b", "c"), "a/b/c"},
		{"父目录折叠", "./x/../y", "y"},
		{"空串", "", "."},
		{"Windows路径", "C:\\Users\\test\\file.txt", "C:/Users/test/file.txt"},
		{"清理多余斜杠", "path//to///file.txt", "path/to/file.txt"},
		{"混合分隔符", "C:\\Users/test\\Documents/file.txt", "C:/Users/test/Documents/file.txt"},
		{"中文路径", "书籍\\网络/扫描.pdf", "书籍/网络/扫描.pdf"},
		{"Unix绝对路径", "/home/user/../admin/book.epub", "/home/admin/book.epub"},
		{"复杂父目录", "a\\b\\c\\..\\..\\..\\..\\d", "../d"},
		{"URL 原样保留", " https://example.com/a//b/../c ", "https://example.com/a//b/../c"},
		{"URL 大写 scheme", "HTTP://Example.com/x", "HTTP://Example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFileID(tt.input); string(got) != tt.expected {
				t.Errorf("NormalizeFileID(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

// BenchmarkNormalizeFileID 性能基准测试
func BenchmarkNormalizeFileID(b *testing.B) {
	testPaths := []string{
		"C:\\Users\\test\\Documents\\nmap.pdf",
		"books/network/../../manuals/nmap.epub",
		"path//to///many////slashes/file.txt",
		"https://nmap.org/book/man.html",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range testPaths {
			NormalizeFileID(p)
		}
	}
}

// TestIsURL 覆盖 scheme 判定边界。
func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"http://a":        true,
		"https://a/b":     true,
		"HTTPS://A":       true,
		"ftp://a":         false,
		"http:/a":         false,
		"books/http.txt":  false,
		"":                false,
		"  http://x.org ": true,
	}
	for in, want := range cases {
		if got := IsURL(in); got != want {
			t.Fatalf("IsURL(%q)=%v, 预期 %v", in, got, want)
		}
	}
}

// TestValidateTable 覆盖结构校验的成功与各类错误分支。
func TestValidateTable(t *testing.T) {
	ok := Table{Columns: RawColumns(), Rows: [][]string{{"nmap -sS", "ctx", ""}}}
	if err := ValidateTable(ok); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	cases := []struct {
		name string
		tbl  Table
	}{
		{"空列名", Table{Columns: []string{"a", ""}}},
		{"重复列", Table{Columns: []string{"a", "a"}}},
		{"行宽不足", Table{Columns: []string{"a", "b"}, Rows: [][]string{{"x"}}}},
		{"行宽过多", Table{Columns: []string{"a"}, Rows: [][]string{{"x", "y"}}}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTable(tt.tbl); !errors.Is(err, ErrFormat) {
				t.Fatalf("want ErrFormat got %v", err)
			}
		})
	}
}

// TestSameColumnSet 验证列集合比较忽略顺序但区分重数。
func TestSameColumnSet(t *testing.T) {
	if !SameColumnSet([]string{"a", "b", "c"}, []string{"c", "a", "b"}) {
		t.Fatalf("同集合应相等")
	}
	if SameColumnSet([]string{"a", "b"}, []string{"a", "c"}) {
		t.Fatalf("不同集合应不等")
	}
	if SameColumnSet([]string{"a", "a"}, []string{"a", "b"}) {
		t.Fatalf("重数不同应不等")
	}
	if SameColumnSet([]string{"a"}, []string{"a", "b"}) {
		t.Fatalf("长度不同应不等")
	}
}

// TestTableKeyColumn 验证键列选择顺序。
func TestTableKeyColumn(t *testing.T) {
	if k := (Table{Columns: CleanedColumns()}).KeyColumn(); k != 0 {
		t.Fatalf("清洗表键列应为 0, got %d", k)
	}
	if k := (Table{Columns: []string{ColContext, ColCommand}}).KeyColumn(); k != 1 {
		t.Fatalf("应选 Command 列, got %d", k)
	}
	if k := (Table{Columns: []string{"x", "y"}}).KeyColumn(); k != 0 {
		t.Fatalf("无命令列时应为首列, got %d", k)
	}
	if k := (Table{}).KeyColumn(); k != -1 {
		t.Fatalf("空表应为 -1, got %d", k)
	}
}

// TestTableClone 验证深拷贝。
func TestTableClone(t *testing.T) {
	src := Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}
	c := src.Clone()
	src.Columns[0] = "x"
	src.Rows[0][0] = "x"
	if c.Columns[0] != "a" || c.Rows[0][0] != "1" {
		t.Fatalf("clone 未独立: %+v", c)
	}
}

// TestDocumentError 验证单文档错误的分类与消息。
func TestDocumentError(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := ContentError("books/a.epub", cause)
	if !errors.Is(err, ErrContent) || !errors.Is(err, cause) {
		t.Fatalf("应同时匹配 ErrContent 与底层原因: %v", err)
	}
	if err.Error() != "document books/a.epub: zip: not a valid zip file" {
		t.Fatalf("消息不符: %s", err)
	}
	// 已包装的不重复包装
	wrapped := fmt.Errorf("decode: %w", err)
	if again := ContentError("other", wrapped); again != wrapped {
		t.Fatalf("不应重复包装")
	}
}

// TestRecordRows 验证记录展开顺序与列常量一致。
func TestRecordRows(t *testing.T) {
	raw := ExtractedRecord{Command: "c", Context: "x", Target: "t"}.Row()
	if len(raw) != len(RawColumns()) || raw[0] != "c" || raw[2] != "t" {
		t.Fatalf("raw 行错误: %v", raw)
	}
	cl := CleanedRecord{CleanedCommand: "c", Description: "d", Target: "t", Context: "x"}.Row()
	cols := CleanedColumns()
	if cl[0] != "c" || cl[1] != "x" || cl[2] != "t" || cl[3] != "d" || cols[3] != ColDescription {
		t.Fatalf("cleaned 行错误: %v", cl)
	}
}
