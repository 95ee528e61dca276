package contract

import (
	"errors"
	"fmt"
)

// 错误分类哨兵。调用方使用 errors.Is 判定，不做字符串匹配。
var (
	// ErrContent: 文档不可读/不可解码（格式不支持、网络失败、文件损坏）。单文档跳过，不中止运行。
	ErrContent = errors.New("content unreadable")
	// ErrFormat: 已持久化的知识表损坏或无法解析。致命。
	ErrFormat = errors.New("knowledge format invalid")
	// ErrSchema: 追加批次的列集与表已建立的列集不兼容。致命。
	ErrSchema = errors.New("knowledge schema mismatch")
	// ErrIO: 最终持久化失败。致命，且不得留下部分输出。
	ErrIO = errors.New("knowledge persist failed")

	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 调用方输入违反前置条件。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// DocumentError: 单文档失败，携带文档标识与底层原因。
// errors.Is(err, ErrContent) 恒为真。
type DocumentError struct {
	FileID FileID
	Err    error
}

func (e *DocumentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("document %s: %v", e.FileID, ErrContent)
	}
	return fmt.Sprintf("document %s: %v", e.FileID, e.Err)
}

func (e *DocumentError) Unwrap() []error { return []error{ErrContent, e.Err} }

// ContentError 将任意错误包装为指定文档的 ErrContent。已是 DocumentError 时原样返回。
func ContentError(id FileID, err error) error {
	var de *DocumentError
	if errors.As(err, &de) {
		return err
	}
	return &DocumentError{FileID: id, Err: err}
}
