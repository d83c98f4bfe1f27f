package storage

import (
	"context"
	"errors"
	"io"

	"chunkvault/pkg/core"
	"chunkvault/pkg/types"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrAmbiguousHash = errors.New("ambiguous address prefix")
)

// Store 是发布自加密结果的目标 (Sink)
// 实现可以是本地磁盘、S3 或带缓存的装饰器。
// 注意：它和引擎使用的内存 Chunk 仓库不同，后者只活在一次调用里。
type Store interface {
	// Put 将一个核心对象持久化
	// 它不需要返回地址，因为地址已经在 core.Object 里了
	Put(ctx context.Context, obj core.Object) error

	// Get 根据地址读取原始数据
	// 返回 io.ReadCloser 以支持流式读取，避免一次性把 1MB 的块读进内存后再拷贝
	Get(ctx context.Context, addr types.Address) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, addr types.Address) (bool, error)

	// ExpandHash 把用户输入的短地址扩展为完整地址
	ExpandHash(ctx context.Context, prefix types.AddressPrefix) (types.Address, error)

	// 没有 Delete：CAS 只增不删
}
