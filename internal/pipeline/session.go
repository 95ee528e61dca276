package pipeline

import (
	"fmt"

	"antiochus/internal/knowledge"
	"antiochus/pkg/contract"
)

// Session 把文档文本经 Ripper 抽取为记录，并按文档批量并入单一知识表。
// 约束：
// - 表由 Session 独占持有；非并发安全，单写者使用；
// - 每篇文档一次 Append（整体成功或整体不并入）；
// - 同一文本重复 Ingest 产出相同批次（去重交由 Hygiene）。
type Session struct {
	ripper contract.Ripper
	table  contract.Table
}

// NewSession 以已有表（可为空表）开启会话。
// Ripper 需要清洗而已有表仍为原始列时先原地清洗；列集合与 Ripper 产出不兼容时返回 ErrSchema。
func NewSession(r contract.Ripper, t contract.Table) (*Session, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil ripper", contract.ErrInvalidInput)
	}
	if r.NeedsCleaning() && t.Index(contract.ColCleaned) < 0 && t.Index(contract.ColCommand) >= 0 {
		if err := knowledge.Clean(&t, r.Tokenize); err != nil {
			return nil, err
		}
	}
	if len(t.Columns) > 0 && !contract.SameColumnSet(t.Columns, columnsOf(r)) {
		return nil, fmt.Errorf("%w: knowledge columns %v incompatible with ripper %s", contract.ErrSchema, t.Columns, r.Name())
	}
	return &Session{ripper: r, table: t}, nil
}

func columnsOf(r contract.Ripper) []string {
	if r.NeedsCleaning() {
		return contract.CleanedColumns()
	}
	return contract.RawColumns()
}

// Rip 对单篇文本执行 扫描 → 目标提取 →（可选）分词，返回该文档的批次表。
// 纯函数：不触碰任何会话状态，可并发调用。
func Rip(r contract.Ripper, text string) contract.Table {
	spans := r.Scan(text)
	if !r.NeedsCleaning() {
		recs := make([]contract.ExtractedRecord, 0, len(spans))
		for _, sp := range spans {
			target, _ := r.ExtractTarget(sp.Raw)
			recs = append(recs, contract.ExtractedRecord{Command: sp.Raw, Context: sp.Context, Target: target})
		}
		return knowledge.FromExtracted(recs)
	}
	recs := make([]contract.CleanedRecord, 0, len(spans))
	for _, sp := range spans {
		target, _ := r.ExtractTarget(sp.Raw)
		cleaned, desc := r.Tokenize(sp.Raw)
		recs = append(recs, contract.CleanedRecord{
			CleanedCommand: cleaned,
			Description:    desc,
			Target:         target,
			Context:        sp.Context,
		})
	}
	return knowledge.FromCleaned(recs)
}

// Ingest 抽取一篇文档并整体并入会话表，返回新增行数。
func (s *Session) Ingest(fileID contract.FileID, text string) (int, error) {
	batch := Rip(s.ripper, text)
	if err := s.Merge(batch); err != nil {
		return 0, fmt.Errorf("%s: %w", fileID, err)
	}
	return batch.Len(), nil
}

// Merge 把已抽取的批次追加到表尾（并行路径在单写者处按输入顺序调用）。
func (s *Session) Merge(batch contract.Table) error {
	return knowledge.Append(&s.table, batch)
}

// Hygiene 删除空键与重复键行，返回删除数。
func (s *Session) Hygiene() int { return knowledge.Hygiene(&s.table) }

// Table 返回当前表（与会话共享底层数据，调用方不得修改）。
func (s *Session) Table() contract.Table { return s.table }
