package csv

import (
	"context"
	"fmt"
	"io"
	"os"

	"antiochus/internal/knowledge"
	"antiochus/pkg/contract"
)

// Store 以 CSV 形式加载/持久化知识表；字节经由 Writer 落盘或上传。
// Writer 同时实现 contract.Opener 时从同一介质读回，否则按本地路径读取。
type Store struct {
	w contract.Writer
}

// New 构造 CSV Store；w 不能为空。
func New(w contract.Writer) (*Store, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: csv store requires a writer", contract.ErrInvalidInput)
	}
	return &Store{w: w}, nil
}

var _ contract.Store = (*Store)(nil)

// Load 读取并解析知识表。不可读或格式错误均归类为 ErrFormat。
func (s *Store) Load(ctx context.Context, id contract.ArtifactID) (contract.Table, error) {
	rc, err := s.open(ctx, id)
	if err != nil {
		return contract.Table{}, fmt.Errorf("%w: open %s: %w", contract.ErrFormat, id, err)
	}
	defer rc.Close()
	t, err := knowledge.DecodeCSV(rc)
	if err != nil {
		return contract.Table{}, fmt.Errorf("%s: %w", id, err)
	}
	return t, nil
}

func (s *Store) open(ctx context.Context, id contract.ArtifactID) (io.ReadCloser, error) {
	if o, ok := s.w.(contract.Opener); ok {
		return o.Open(ctx, id)
	}
	return os.Open(string(id))
}

// Persist 编码并整体写出；失败归类为 ErrIO，且由 Writer 保证不留下部分输出。
func (s *Store) Persist(ctx context.Context, id contract.ArtifactID, t contract.Table) error {
	if err := contract.ValidateTable(t); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrIO, err)
	}
	rc := knowledge.CSVReader(t)
	defer rc.Close()
	if err := s.w.Write(ctx, id, rc); err != nil {
		return fmt.Errorf("%w: write %s: %w", contract.ErrIO, id, err)
	}
	return nil
}
