package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	logPrefix   = "antiochus-"
	currentName = logPrefix + "current.txt"
	// DefaultKeepRotated 为默认保留的历史日志份数。
	DefaultKeepRotated = 5
)

// RotatingFile 将日志行写入指定目录，按大小轮转并限制历史份数。
// 约束：
// - 当前文件固定名 antiochus-current.txt，首次写入时才创建目录与文件。
// - size+len(line) 超过 maxBytes 时重命名为 antiochus-<UTC 时间戳>.txt。
// - 历史文件超过 keep 份时按名称（即时间）删除最旧者；keep<=0 表示不清理。
type RotatingFile struct {
	dir      string
	maxBytes int64
	keep     int

	mu      sync.Mutex
	f       *os.File
	curSize int64
}

// NewRotatingFile 使用默认保留份数构造。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	return NewRotatingFileKeep(dir, maxBytes, DefaultKeepRotated)
}

// NewRotatingFileKeep 指定历史文件保留份数。
func NewRotatingFileKeep(dir string, maxBytes int64, keep int) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes, keep: keep}
}

// WriteLine 追加一行（自动补换行）。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpen(); err != nil {
		return err
	}
	line := make([]byte, 0, len(b)+1)
	line = append(append(line, b...), '\n')
	if w.curSize > 0 && w.curSize+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(line)
	w.curSize += int64(n)
	return err
}

func (w *RotatingFile) ensureOpen() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, currentName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.curSize = 0
	if st, err := f.Stat(); err == nil {
		w.curSize = st.Size()
	}
	return nil
}

func (w *RotatingFile) rotate() error {
	if w.f == nil {
		return w.ensureOpen()
	}
	old := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度避免同秒覆盖
	ts := time.Now().UTC().Format("20060102-150405.000000000")
	if err := os.Rename(old, filepath.Join(w.dir, fmt.Sprintf("%s%s.txt", logPrefix, ts))); err != nil {
		return fmt.Errorf("rename rotated file: %w", err)
	}
	w.prune()
	return w.ensureOpen()
}

// prune 删除超出保留份数的历史文件；失败忽略。
func (w *RotatingFile) prune() {
	if w.keep <= 0 {
		return
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	var rotated []string
	for _, e := range ents {
		n := e.Name()
		if e.IsDir() || n == currentName || !strings.HasPrefix(n, logPrefix) || !strings.HasSuffix(n, ".txt") {
			continue
		}
		rotated = append(rotated, n)
	}
	if len(rotated) <= w.keep {
		return
	}
	sort.Strings(rotated)
	for _, n := range rotated[:len(rotated)-w.keep] {
		_ = os.Remove(filepath.Join(w.dir, n))
	}
}

// Close 刷盘并关闭当前文件。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	_ = w.f.Sync()
	err := w.f.Close()
	w.f = nil
	return err
}
