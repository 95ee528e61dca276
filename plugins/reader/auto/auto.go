package auto

import (
	"context"
	"io"

	"antiochus/pkg/contract"
	rfs "antiochus/plugins/reader/filesystem"
	rweb "antiochus/plugins/reader/web"
)

// Options 组合两个底层 Reader 的选项。
type Options struct {
	FS  rfs.Options  `json:"fs"`
	Web rweb.Options `json:"web"`
}

// Auto 按 root 类型分派：http(s) URL 走 Web，其余走文件系统。保持 root 顺序。
type Auto struct {
	fs  contract.Reader
	web contract.Reader
}

// New 构造分派 Reader。
func New(opts *Options) (*Auto, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	w, err := rweb.New(&o.Web)
	if err != nil {
		return nil, err
	}
	return &Auto{fs: rfs.New(&o.FS), web: w}, nil
}

// NewWith 使用给定的底层 Reader（测试或自定义组合）。
func NewWith(fs, web contract.Reader) *Auto { return &Auto{fs: fs, web: web} }

// Iterate 将连续的同类 root 合并为一组交给对应 Reader。
// 无 root（或仅 "-"）时读取 STDIN。
func (a *Auto) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if len(roots) == 0 {
		return a.fs.Iterate(ctx, roots, yield)
	}
	start := 0
	for i := 1; i <= len(roots); i++ {
		if i < len(roots) && contract.IsURL(roots[i]) == contract.IsURL(roots[start]) {
			continue
		}
		group := roots[start:i]
		r := a.fs
		if contract.IsURL(group[0]) {
			r = a.web
		}
		if err := r.Iterate(ctx, group, yield); err != nil {
			return err
		}
		start = i
	}
	return nil
}
