package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"antiochus/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeContent   Code = "content"
	CodeFormat    Code = "format"
	CodeSchema    Code = "schema"
	CodeIO        Code = "io"
	CodeInvariant Code = "invariant"
	CodeNetwork   Code = "network"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
// 单文档错误（ErrContent）先于其底层 I/O/网络原因归类。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 表级错误
	if errors.Is(err, contract.ErrSchema) {
		return CodeSchema
	}
	if errors.Is(err, contract.ErrFormat) {
		return CodeFormat
	}
	if errors.Is(err, contract.ErrIO) {
		return CodeIO
	}
	// 文档级错误
	if errors.Is(err, contract.ErrContent) {
		return CodeContent
	}
	// 不变量
	if errors.Is(err, contract.ErrInvariantViolation) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 网络（连接/超时等）
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// Fatal 报告该分类是否应中止整个运行（表级错误与取消）。
func Fatal(c Code) bool {
	switch c {
	case CodeContent:
		return false
	default:
		return true
	}
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
