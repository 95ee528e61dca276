package contract

// FileID: 逻辑文档ID（通常为路径或 URL，需规范化，跨平台一致）。
type FileID string

// 知识表列名。原始（未清洗）表为 Command/Context/Target；
// 清洗后为 Cleaned_Command/Context/Target/Description。
const (
	ColCommand     = "Command"
	ColCleaned     = "Cleaned_Command"
	ColContext     = "Context"
	ColTarget      = "Target"
	ColDescription = "Description"
)

// RawColumns 返回原始记录的列顺序（每次返回新切片）。
func RawColumns() []string { return []string{ColCommand, ColContext, ColTarget} }

// CleanedColumns 返回清洗记录的列顺序（每次返回新切片）。
func CleanedColumns() []string {
	return []string{ColCleaned, ColContext, ColTarget, ColDescription}
}

// Span: 候选命令片段。
// 约束：
// - Start <= End <= len(源文本)；
// - Raw == 源文本[Start:End]；
// - Raw 的首个空白分隔 token 与命令关键字大小写不敏感相等。
// Context 为围绕片段的上下文窗口（换行已折叠为空格）。
type Span struct {
	Raw     string
	Start   int
	End     int
	Context string
}

// ExtractedRecord: 扫描器原始产出（清洗前）。
type ExtractedRecord struct {
	Command string
	Context string
	Target  string
}

// Row 按 RawColumns 顺序展开。
func (r ExtractedRecord) Row() []string { return []string{r.Command, r.Context, r.Target} }

// CleanedRecord: Tokenizer 产出。
type CleanedRecord struct {
	CleanedCommand string
	Description    string
	Target         string
	Context        string
}

// Row 按 CleanedColumns 顺序展开。
func (r CleanedRecord) Row() []string {
	return []string{r.CleanedCommand, r.Context, r.Target, r.Description}
}

// Table: 知识表。有序行 + 有序列；行宽与列数一致。
// 由单一所有者持有并显式传递，不做全局共享。
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len 返回行数。
func (t Table) Len() int { return len(t.Rows) }

// Index 返回列名位置；不存在为 -1。
func (t Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// KeyColumn 返回键列位置：Cleaned_Command 优先，其次 Command，否则首列；无列时为 -1。
func (t Table) KeyColumn() int {
	if i := t.Index(ColCleaned); i >= 0 {
		return i
	}
	if i := t.Index(ColCommand); i >= 0 {
		return i
	}
	if len(t.Columns) == 0 {
		return -1
	}
	return 0
}

// Clone 深拷贝（列与行均不共享底层数组）。
func (t Table) Clone() Table {
	out := Table{Columns: append([]string(nil), t.Columns...)}
	if len(t.Rows) > 0 {
		out.Rows = make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]string(nil), r...)
		}
	}
	return out
}
