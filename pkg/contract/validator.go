package contract

import "fmt"

// ValidateTable 对知识表做纯结构校验（无 I/O）：
// - 列名非空且不重复；
// - 每行宽度等于列数。
// 违例返回包装 ErrFormat 的错误，附带首个违例位置。
func ValidateTable(t Table) error {
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if c == "" {
			return fmt.Errorf("%w: column %d has empty name", ErrFormat, i)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrFormat, c)
		}
		seen[c] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("%w: row %d has %d fields, want %d", ErrFormat, i, len(r), len(t.Columns))
		}
	}
	return nil
}

// SameColumnSet 判断两组列名是否为同一集合（忽略顺序）。
func SameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, c := range a {
		set[c]++
	}
	for _, c := range b {
		if set[c] == 0 {
			return false
		}
		set[c]--
	}
	return true
}
