package diag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"antiochus/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
}

func TestRotatingFileRotateFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 10)
	for i := 0; i < 5; i++ {
		if err := w.WriteLine([]byte("xxxxxxxxxxxxxxxxxx")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == "antiochus-current.txt" {
			hasCurrent = true
		}
		if strings.HasPrefix(e.Name(), "antiochus-") && !strings.Contains(e.Name(), "current") {
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("应同时存在当前与历史文件: current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	if err := w.WriteLine([]byte("a")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.f = nil
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
}

// UT-DIAG-02: 指标计数与快照
func TestMetricsSnapshot(t *testing.T) {
	ResetMetrics()
	IncOp("pipeline", "document", "success")
	IncOp("pipeline", "document", "success")
	IncError("pipeline", string(CodeContent))
	ObserveDuration("pipeline", "run", 7)
	got := map[string]int64{}
	for _, m := range Snapshot() {
		got[m.Name] = m.Value
	}
	if got["op_total{comp=pipeline,stage=document,result=success}"] != 2 {
		t.Fatalf("op_total 计数错误: %v", got)
	}
	if got["error_total{comp=pipeline,code=content}"] != 1 {
		t.Fatalf("error_total 计数错误: %v", got)
	}
	if got["op_duration_ms{comp=pipeline,stage=run}"] != 7 {
		t.Fatalf("耗时累计错误: %v", got)
	}
	ResetMetrics()
	if len(Snapshot()) != 0 {
		t.Fatalf("reset 后应为空")
	}
}

// UT-DIAG-03: 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("%w: column set differs", contract.ErrSchema), CodeSchema},
		{fmt.Errorf("%w: bad quote", contract.ErrFormat), CodeFormat},
		{fmt.Errorf("%w: disk full", contract.ErrIO), CodeIO},
		{contract.ContentError("a.pdf", &fs.PathError{Op: "open", Path: "a.pdf", Err: fs.ErrNotExist}), CodeContent},
		{contract.ErrInvalidInput, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{&net.DNSError{Err: "x"}, CodeNetwork},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v)=%s want %s", c.err, got, c.want)
		}
	}
	if Fatal(CodeContent) {
		t.Fatalf("content 不应致命")
	}
	if !Fatal(CodeSchema) || !Fatal(CodeCancel) {
		t.Fatalf("表级错误与取消应致命")
	}
}

// UT-DIAG-04: Logger 基本流程（stderr 回退）
func TestLogger(t *testing.T) {
	l := NewLogger("corr", "debug")
	l.sink = nil
	timer := l.Start("comp", "msg")
	timer.Finish("ok", 1)
	timer = l.StartWith("comp", "msg", "fid")
	timer.Finish("ok", 1)
	timer = l.StartWithKV("comp", "msg", "fid", map[string]string{"k": "v"})
	if timer.Since() == nil {
		t.Fatalf("计时起点不应为 nil")
	}
	timer.Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	l.ErrorWith("comp", "code", "msg", nil, "fid")
	l.ErrorWithKV("comp", "code", "msg", nil, "fid", map[string]string{"http_status": "500"})
	l.Skip("comp", "content", "msg", "fid", nil)
	l.InfoFinish("comp", "msg", time.Now(), 1)
	l.DebugStart("comp", "msg", "fid", nil)
}

func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerIn(dir, "corr", "info")
	defer l.Close()
	l.Start("comp", "msg").Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	b, err := os.ReadFile(filepath.Join(dir, "antiochus-current.txt"))
	if err != nil {
		t.Fatalf("日志文件不存在: %v", err)
	}
	if !strings.Contains(string(b), `"corr_id":"corr"`) || !strings.Contains(string(b), `"stage":"finish"`) {
		t.Fatalf("日志内容缺失: %s", b)
	}
}

func TestLoggerLevelsAndFilter(t *testing.T) {
	if Warn.String() != "warn" {
		t.Fatalf("warn string")
	}
	var unknown Level = 12345
	if unknown.String() != "info" {
		t.Fatalf("default string")
	}
	if ParseLevel(" ERROR ") != Error || ParseLevel("bogus") != Info {
		t.Fatalf("ParseLevel 解析错误")
	}
	dir := t.TempDir()
	l := NewLoggerIn(dir, "c", "warn")
	defer l.Close()
	// warn 级别下 info/debug 被过滤
	l.DebugStart("comp", "msg", "f", nil)
	l.Start("comp", "msg")
	if _, err := os.Stat(filepath.Join(dir, "antiochus-current.txt")); !os.IsNotExist(err) {
		t.Fatalf("被过滤的事件不应创建日志文件: %v", err)
	}
	start := time.Now().Add(-10 * time.Millisecond)
	l.Error("comp", "code", "msg", &start)

	var nl *Logger
	nl.Start("x", "y").Finish("z", 0)
	if err := nl.Close(); err != nil {
		t.Fatalf("nil logger close: %v", err)
	}
	var tnil *Timer
	tnil.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
}

func TestNowUTC(t *testing.T) {
	if _, err := time.Parse(time.RFC3339, NowUTC()); err != nil {
		t.Fatalf("应返回 RFC3339 时间: %v", err)
	}
}

// UT-DIAG-05: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart(4, "nmap")
	term.FileStart("docs/guide.pdf")
	term.FileFinish("docs/guide.pdf", true, 3, 5100*time.Millisecond)
	term.FileStart("docs/broken.epub")
	term.Skip("docs/broken.epub", errors.New("zip: not a valid zip file"))
	term.FileFinish("docs/broken.epub", false, 0, 20*time.Millisecond)
	term.Preview("record 1", "nmap -sS 10.0.0.1")
	term.RunFinish(true, 7, 41300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") || strings.Contains(out, "\x1b[") {
		t.Fatalf("非 TTY 不应含回车或转义序列: %q", out)
	}
	for _, want := range []string{
		"[run] 并发=4 | ripper=nmap",
		"[doc] guide.pdf",
		"[done] guide.pdf | 记录 3 | 用时 5.1s",
		"[skip] broken.epub | zip: not a valid zip file",
		"[fail] broken.epub | 记录 0 | 用时 20ms",
		"--- record 1 ---\nnmap -sS 10.0.0.1",
		"[ok] 全部完成 | 文档 2 | 失败 1 | 记录 3 | 知识行 7 | 总用时 41.3s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("缺少输出 %q: %q", want, out)
		}
	}
}

// UT-DIAG-06: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(2, "nmap")
	term.FileStart("/a/b/c/longfilename.txt")
	first := sb.String()
	if !strings.Contains(first, "\r[doc]") {
		t.Fatalf("进度应以回车覆盖: %q", first)
	}
	// 立即第二次：被节流
	term.FileStart("/a/b/c/other.txt")
	if sb.String() != first {
		t.Fatalf("第二次进度应被节流")
	}
	term.FileFinish("/a/b/c/other.txt", false, 0, 2200*time.Millisecond)
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	if idx < 0 {
		t.Fatalf("应包含 fail 行: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("清尾应在回车后写入空格: %q", seg)
	}
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

// UT-DIAG-07: 写失败降级为禁用态
func TestTerminalDisableOnWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.isTTY = false
	term.RunStart(1, "x")
	if term.enabled {
		t.Fatalf("写失败后应禁用")
	}
	term.FileStart("a")
	term.FileFinish("a", true, 0, 0)
	term.Skip("a", nil)
	term.Preview("a", "b")
	term.RunFinish(true, 0, 0)
}

func TestTerminalInlineWriteError(t *testing.T) {
	fw := &flakyWriter{fail: true}
	term := NewTerminal(fw, true)
	term.isTTY = true
	term.FileStart("f.txt")
	if term.enabled {
		t.Fatalf("inline 写失败后应禁用")
	}
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, "x")
	tn.FileStart("a")
	tn.FileFinish("a", true, 0, 0)
	tn.Skip("a", nil)
	tn.Preview("a", "b")
	tn.RunFinish(true, 0, 0)
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	term := NewTerminal(os.Stderr, true)
	if term.isTTY {
		t.Fatalf("CI 环境应视为非 TTY")
	}
}

func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.txt", 10); visLen(got) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("shortenBase 截断错误: %q", got)
	}
	if shortenBase("https://example.com/docs/nmap/", 48) != "nmap" {
		t.Fatalf("URL 应取末段")
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("max<=0 应为空")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" || formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur 错误")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(os.Stderr, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}

func TestRotatingFilePrune(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFileKeep(dir, 5, 2)
	for i := 0; i < 6; i++ {
		if err := w.WriteLine([]byte("line-that-overflows")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	// 当前文件 + 2 份历史
	if len(ents) != 3 {
		t.Fatalf("应保留 3 个文件, got %d", len(ents))
	}
}
