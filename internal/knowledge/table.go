package knowledge

import (
	"fmt"
	"strings"

	"antiochus/pkg/contract"
)

// 知识表操作。表由调用方独占持有并显式传入；此处不做同步。
//
// 约束：
// - Append 保持既有列顺序；列集合不同即 ErrSchema；
// - Hygiene 先删空键，再删后出现的重复键（先到者保留），幂等；
// - Clean 是唯一的原地改写：原始表 → 清洗表。

// New 返回具有给定列、无数据行的空表。
func New(columns []string) contract.Table {
	return contract.Table{Columns: append([]string(nil), columns...)}
}

// FromExtracted 把原始记录组装为 RawColumns 表。
func FromExtracted(recs []contract.ExtractedRecord) contract.Table {
	t := New(contract.RawColumns())
	t.Rows = make([][]string, 0, len(recs))
	for _, r := range recs {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// FromCleaned 把清洗记录组装为 CleanedColumns 表。
func FromCleaned(recs []contract.CleanedRecord) contract.Table {
	t := New(contract.CleanedColumns())
	t.Rows = make([][]string, 0, len(recs))
	for _, r := range recs {
		t.Rows = append(t.Rows, r.Row())
	}
	return t
}

// Append 将 batch 的行追加到 t 之后。
// - t 尚无列：采用 batch 的列；
// - 列集合相同但顺序不同：按 t 的列顺序重排；
// - 其他情况：ErrSchema，t 不变。
// 追加的行为拷贝，不与 batch 共享底层数组。
func Append(t *contract.Table, batch contract.Table) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", contract.ErrInvalidInput)
	}
	if len(batch.Columns) == 0 {
		if len(batch.Rows) > 0 {
			return fmt.Errorf("%w: batch has %d rows but no columns", contract.ErrSchema, len(batch.Rows))
		}
		return nil
	}
	for i, r := range batch.Rows {
		if len(r) != len(batch.Columns) {
			return fmt.Errorf("%w: batch row %d has %d fields, want %d", contract.ErrSchema, i, len(r), len(batch.Columns))
		}
	}
	if len(t.Columns) == 0 {
		t.Columns = append([]string(nil), batch.Columns...)
		for _, r := range batch.Rows {
			t.Rows = append(t.Rows, append([]string(nil), r...))
		}
		return nil
	}
	if !contract.SameColumnSet(t.Columns, batch.Columns) {
		return fmt.Errorf("%w: table columns [%s], batch columns [%s]", contract.ErrSchema,
			strings.Join(t.Columns, ","), strings.Join(batch.Columns, ","))
	}
	// perm[i] = batch 中对应 t.Columns[i] 的位置
	perm := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		for j, bc := range batch.Columns {
			if bc == c {
				perm[i] = j
				break
			}
		}
	}
	for _, r := range batch.Rows {
		row := make([]string, len(perm))
		for i, j := range perm {
			row[i] = r[j]
		}
		t.Rows = append(t.Rows, row)
	}
	return nil
}

// Hygiene 原地删除键列为空（含纯空白）的行与重复键行，返回删除数。
// 键列见 contract.Table.KeyColumn；无列时不做任何事。
func Hygiene(t *contract.Table) int {
	if t == nil {
		return 0
	}
	k := t.KeyColumn()
	if k < 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if k >= len(r) || strings.TrimSpace(r[k]) == "" {
			continue
		}
		if _, dup := seen[r[k]]; dup {
			continue
		}
		seen[r[k]] = struct{}{}
		kept = append(kept, r)
	}
	removed := len(t.Rows) - len(kept)
	// 释放尾部引用
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return removed
}

// TokenizeFunc 把原始命令拆成规范命令与描述。
type TokenizeFunc func(command string) (cleaned, description string)

// Clean 把原始表（含 Command 列）原地改写为 CleanedColumns 表。
// 已含 Cleaned_Command 的表不做改动；无 Command 列时返回 ErrSchema。
func Clean(t *contract.Table, tokenize TokenizeFunc) error {
	if t == nil || tokenize == nil {
		return fmt.Errorf("%w: nil table or tokenizer", contract.ErrInvalidInput)
	}
	if len(t.Columns) == 0 || t.Index(contract.ColCleaned) >= 0 {
		return nil
	}
	ci := t.Index(contract.ColCommand)
	if ci < 0 {
		return fmt.Errorf("%w: cannot clean table without %s column", contract.ErrSchema, contract.ColCommand)
	}
	xi := t.Index(contract.ColContext)
	ti := t.Index(contract.ColTarget)
	field := func(r []string, i int) string {
		if i < 0 || i >= len(r) {
			return ""
		}
		return r[i]
	}
	for n, r := range t.Rows {
		cleaned, desc := tokenize(field(r, ci))
		t.Rows[n] = contract.CleanedRecord{
			CleanedCommand: cleaned,
			Description:    desc,
			Target:         field(r, ti),
			Context:        field(r, xi),
		}.Row()
	}
	t.Columns = contract.CleanedColumns()
	return nil
}
