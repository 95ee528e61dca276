package contract

import (
	"context"
	"io"
)

// ArtifactID: 与 FileID 等价的持久化工件标识（语义别名）。
type ArtifactID = FileID

// Writer: 将字节流持久化到目标介质（文件系统/对象存储等）。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改业务内容；
//  3. ctx 取消/超时需尽快返回；
//  4. 失败时不得留下部分内容（原子替换或整体上传）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// Opener: Writer 的可选读回能力（对象存储等非本地介质）。
// 实现方在工件不存在时返回包装 fs.ErrNotExist 的错误。
type Opener interface {
	Open(ctx context.Context, id ArtifactID) (io.ReadCloser, error)
}

// Store: 知识表的加载与持久化。
// - Load 失败归类 ErrFormat（不可读或格式错误）；
// - Persist 失败归类 ErrIO，且不留下部分输出。
type Store interface {
	Load(ctx context.Context, id ArtifactID) (Table, error)
	Persist(ctx context.Context, id ArtifactID, t Table) error
}
