package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal: 终端信息提示（非日志）。
// - 输出到提供的 io.Writer（默认建议 stderr）。
// - TTY: 单行 \r 覆盖并着色；非 TTY: 关键节点分行打印纯文本。
// - 并发安全；写失败后进入禁用态为 no-op。
type Terminal struct {
	w       io.Writer
	enabled bool
	isTTY   bool

	// 运行期最小状态
	concurrency int
	ripper      string
	docsDone    int
	docsFailed  int
	records     int
	runStart    time.Time

	// 当前文档
	curFileID string

	// 输出控制
	lastLen   int
	lastFlush time.Time

	mu sync.Mutex
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// 进程级终端（可选，全局设置后供 pipeline 旁路调用）。
var (
	termMu sync.RWMutex
	term   *Terminal
)

// SetTerminal 设置全局终端指针（nil 可清除）。
func SetTerminal(t *Terminal) { termMu.Lock(); term = t; termMu.Unlock() }

// GetTerminal 返回全局终端（可能为 nil）。
func GetTerminal() *Terminal { termMu.RLock(); defer termMu.RUnlock(); return term }

// NewTerminal 构造终端提示器。
// enabled=false 时总是 no-op。
func NewTerminal(w io.Writer, enabled bool) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled}
	// CI 环境视为非 TTY
	if os.Getenv("CI") != "" {
		t.isTTY = false
	} else if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil {
			t.isTTY = fi.Mode()&os.ModeCharDevice != 0
		}
	}
	return t
}

// tag 在 TTY 下着色，非 TTY 保持纯文本。
func (t *Terminal) tag(s string, st lipgloss.Style) string {
	if !t.isTTY {
		return s
	}
	return st.Render(s)
}

// RunStart: 记录运行上下文（并发、抽取器）。
func (t *Terminal) RunStart(concurrency int, ripper string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.concurrency = concurrency
	t.ripper = ripper
	t.docsDone, t.docsFailed, t.records = 0, 0, 0
	t.runStart = time.Now()
	t.println(fmt.Sprintf("%s 并发=%d | ripper=%s", t.tag("[run]", mutedStyle), concurrency, safe(ripper)))
}

// FileStart: 标记当前文档。
func (t *Terminal) FileStart(fileID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.curFileID = shortenBase(fileID, 48)
	if t.isTTY {
		t.progress()
		return
	}
	t.println(fmt.Sprintf("[doc] %s", t.curFileID))
}

// progress 输出单行覆盖的运行进度（≥100ms 节流）；调用方持锁。
func (t *Terminal) progress() {
	now := time.Now()
	if now.Sub(t.lastFlush) < 100*time.Millisecond {
		return
	}
	t.lastFlush = now
	line := fmt.Sprintf("[doc] %s | 文档 %d | 记录 %d | 失败 %d | 用时 %s",
		t.curFileID, t.docsDone, t.records, t.docsFailed, formatSince(t.runStart))
	t.printInline(line)
}

// FileFinish: 完成当前文档（records 为本文档抽取的记录数）。
func (t *Terminal) FileFinish(fileID string, ok bool, records int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.docsDone++
	t.records += records
	status := t.tag("[done]", okStyle)
	if !ok {
		t.docsFailed++
		status = t.tag("[fail]", failStyle)
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s %s | 记录 %d | 用时 %s", status, shortenBase(fileID, 48), records, formatDur(dur)))
}

// Skip: 单文档失败被跳过（运行继续）。
func (t *Terminal) Skip(fileID string, err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	msg := ""
	if err != nil {
		msg = safe(err.Error())
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s %s | %s", t.tag("[skip]", warnStyle), shortenBase(fileID, 48), msg))
}

// Preview: verbose 模式下的内容预览（多行原样输出，控制字符外不做处理）。
func (t *Terminal) Preview(label, text string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s\n%s", t.tag("--- "+safe(label)+" ---", mutedStyle), strings.TrimRight(text, "\n")))
}

// RunFinish: 结束总览。
func (t *Terminal) RunFinish(ok bool, rows int, dur time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	tag := t.tag("[ok]", okStyle)
	if !ok {
		tag = t.tag("[fail]", failStyle)
	}
	if t.isTTY && t.lastLen > 0 {
		t.printInline("")
	}
	t.println(fmt.Sprintf("%s 全部完成 | 文档 %d | 失败 %d | 记录 %d | 知识行 %d | 总用时 %s",
		tag, t.docsDone, t.docsFailed, t.records, rows, formatDur(dur)))
}

// 内部输出工具
func (t *Terminal) println(s string) {
	if t == nil || !t.enabled {
		return
	}
	if _, err := io.WriteString(t.w, s+"\n"); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
	t.lastLen = 0
}

func (t *Terminal) printInline(s string) {
	if t == nil || !t.enabled {
		return
	}
	// 清尾：若新行比旧短，填充空格覆盖
	pad := 0
	if l := visLen(s); t.lastLen > l {
		pad = t.lastLen - l
	}
	var b strings.Builder
	b.WriteByte('\r')
	b.WriteString(s)
	if pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	if _, err := io.WriteString(t.w, b.String()); err != nil {
		t.enabled = false
		return
	}
	t.lastLen = visLen(s)
}

// shortenBase: 取基名并按可见宽度截断（尾部省略号）；URL 保留末段。
func shortenBase(s string, max int) string {
	if max <= 0 {
		return ""
	}
	base := filepath.Base(strings.TrimRight(strings.TrimSpace(s), "/"))
	if base == "" {
		return ""
	}
	if visLen(base) <= max {
		return base
	}
	cut := max - 1
	if cut < 1 {
		cut = 1
	}
	rs := []rune(base)
	if len(rs) <= cut {
		return string(rs)
	}
	return string(rs[:cut]) + "…"
}

func visLen(s string) int { return len([]rune(s)) }

func safe(s string) string {
	// 避免换行等控制字符污染终端
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return s
}

func formatSince(t0 time.Time) string { return formatDur(time.Since(t0)) }

func formatDur(d time.Duration) string {
	if d < time.Second {
		ms := d.Milliseconds()
		if ms <= 0 {
			ms = 0
		}
		return fmt.Sprintf("%dms", ms)
	}
	s := float64(d.Milliseconds()) / 1000.0
	return fmt.Sprintf("%.1fs", s)
}
