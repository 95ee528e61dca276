package contract

import (
	"context"
	"io"
)

// Reader: 输入源抽象（文件/目录/STDIN/URL）。
// 约束：
// 1) 流式读取，按文档维度回调；
// 2) FileID 稳定且去平台差异化；
// 3) 不做解码/业务解析，仅提供字节流；
// 4) 不在内部起并发；
// 5) 单文档打不开时仍回调，由读取时返回的错误体现（归类为 ErrContent），不中止遍历。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, r io.ReadCloser) error) error
}

// Decoder: 把单个文档的字节流解码为纯文本。
// 失败一律包装为 ErrContent（格式不支持、文件损坏等）。
type Decoder interface {
	Decode(ctx context.Context, fileID FileID, r io.Reader) (string, error)
}
