// Package selfenc 实现自加密引擎：把明文切成若干块，
// 每块用相邻块的明文哈希派生的密钥加密，结果写进调用方提供的 Storage，
// 最后返回描述如何还原原文的 DataMap。
//
// 引擎只通过 Storage 接口接触存储，不关心块放在哪里。
package selfenc

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chunkvault/pkg/chunker"
	"chunkvault/pkg/core"
	"chunkvault/pkg/types"

	"github.com/klauspost/compress/zstd"
)

var (
	ErrClosed    = errors.New("encryptor is closed")
	ErrBadOffset = errors.New("invalid write offset")
	ErrCorrupted = errors.New("chunk data corrupted")
)

// Storage 是引擎要求的存储能力
type Storage interface {
	Get(ctx context.Context, addr types.Address) ([]byte, error)
	Put(ctx context.Context, addr types.Address, data []byte) error
	Delete(ctx context.Context, addr types.Address) error
	GenerateAddress(ctx context.Context, data []byte) (types.Address, error)
}

// Options 控制切分和压缩
type Options struct {
	MinChunkSize int
	MaxChunkSize int
	Level        zstd.EncoderLevel
}

type Option func(*Options)

func WithChunkSizes(minSize, maxSize int) Option {
	return func(o *Options) {
		o.MinChunkSize = minSize
		o.MaxChunkSize = maxSize
	}
}

func WithCompressionLevel(level zstd.EncoderLevel) Option {
	return func(o *Options) { o.Level = level }
}

func buildOptions(opts []Option) Options {
	o := Options{
		MinChunkSize: chunker.MinSize,
		MaxChunkSize: chunker.MaxSize,
		Level:        zstd.SpeedDefault,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Encryptor 累积写入的明文，Close 时一次性切分加密
type Encryptor struct {
	storage Storage
	chunker *chunker.Chunker
	level   zstd.EncoderLevel
	buf     []byte
	closed  bool
}

// New 绑定 storage。dm 不为空时先把已有内容解密出来，后续 Write 在其上修改。
func New(ctx context.Context, storage Storage, dm core.DataMap, opts ...Option) (*Encryptor, error) {
	o := buildOptions(opts)
	e := &Encryptor{
		storage: storage,
		chunker: chunker.NewChunkerWithSizes(o.MinChunkSize, o.MaxChunkSize),
		level:   o.Level,
	}
	if dm.Kind != core.KindNone {
		existing, err := Decrypt(ctx, dm, storage, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing data map: %w", err)
		}
		e.buf = existing
	}
	return e, nil
}

// Len 返回当前明文长度
func (e *Encryptor) Len() int { return len(e.buf) }

// Write 在 offset 处写入数据，超出当前长度的部分用 0 填充
func (e *Encryptor) Write(_ context.Context, data []byte, offset int) error {
	if e.closed {
		return ErrClosed
	}
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrBadOffset, offset)
	}
	if end := offset + len(data); end > len(e.buf) {
		grown := make([]byte, end)
		copy(grown, e.buf)
		e.buf = grown
	}
	copy(e.buf[offset:], data)
	return nil
}

// Close 切分、加密并存储所有块，返回 DataMap 和 (可能被修改过的) storage
func (e *Encryptor) Close(ctx context.Context) (core.DataMap, Storage, error) {
	if e.closed {
		return core.DataMap{}, nil, ErrClosed
	}
	e.closed = true

	// 1. 空输入
	if len(e.buf) == 0 {
		return core.NoneDataMap(), e.storage, nil
	}

	// 2. 太小，直接内联
	cuts := e.chunker.Cut(len(e.buf))
	if len(cuts) == 0 {
		content := append([]byte(nil), e.buf...)
		return core.ContentDataMap(content), e.storage, nil
	}

	// 3. 先算出所有块的明文哈希 (密钥派生需要相邻块)
	plains := make([][]byte, len(cuts))
	preHashes := make([]types.Address, len(cuts))
	start := 0
	for i, end := range cuts {
		plains[i] = e.buf[start:end]
		h, err := e.storage.GenerateAddress(ctx, plains[i])
		if err != nil {
			return core.DataMap{}, nil, fmt.Errorf("failed to hash chunk %d: %w", i, err)
		}
		preHashes[i] = h
		start = end
	}

	// 4. 逐块加密并存储
	infos := make([]core.ChunkInfo, len(plains))
	for i, plain := range plains {
		if err := ctx.Err(); err != nil {
			return core.DataMap{}, nil, err
		}

		framed, err := compress(plain, e.level)
		if err != nil {
			return core.DataMap{}, nil, err
		}
		sealed, err := seal(framed, deriveKeys(i, preHashes))
		if err != nil {
			return core.DataMap{}, nil, fmt.Errorf("failed to encrypt chunk %d: %w", i, err)
		}

		addr, err := e.storage.GenerateAddress(ctx, sealed)
		if err != nil {
			return core.DataMap{}, nil, fmt.Errorf("failed to address chunk %d: %w", i, err)
		}
		if err := e.storage.Put(ctx, addr, sealed); err != nil {
			return core.DataMap{}, nil, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}

		infos[i] = core.ChunkInfo{
			Index:      i,
			Address:    core.NewLink(addr),
			PreHash:    core.NewLink(preHashes[i]),
			SourceSize: len(plain),
		}
	}

	return core.ChunksDataMap(infos), e.storage, nil
}

// Decrypt 按 DataMap 从 storage 读取所有块并还原原文
func Decrypt(ctx context.Context, dm core.DataMap, storage Storage, opts ...Option) ([]byte, error) {
	switch dm.Kind {
	case core.KindNone:
		return nil, nil
	case core.KindContent:
		return append([]byte(nil), dm.Content...), nil
	case core.KindChunks:
	default:
		return nil, fmt.Errorf("unknown data map kind: %s", dm.Kind)
	}

	o := buildOptions(opts)
	infos := append([]core.ChunkInfo(nil), dm.Chunks...)
	sort.Slice(infos, func(a, b int) bool { return infos[a].Index < infos[b].Index })

	preHashes := make([]types.Address, len(infos))
	for i, info := range infos {
		preHashes[i] = info.PreHash.Addr
	}

	out := make([]byte, 0, dm.Len())
	for i, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sealed, err := storage.Get(ctx, info.Address.Addr)
		if err != nil {
			return nil, fmt.Errorf("failed to get chunk %d: %w", info.Index, err)
		}

		// 1. 校验密文地址
		addr, err := storage.GenerateAddress(ctx, sealed)
		if err != nil {
			return nil, err
		}
		if addr != info.Address.Addr {
			return nil, fmt.Errorf("%w: chunk %d address mismatch", ErrCorrupted, info.Index)
		}

		// 2. 解密 + 解压
		framed, err := open(sealed, deriveKeys(i, preHashes))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", info.Index, err)
		}
		plain, err := decompress(framed, max(o.MaxChunkSize, info.SourceSize))
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", info.Index, err)
		}

		// 3. 校验明文哈希
		h, err := storage.GenerateAddress(ctx, plain)
		if err != nil {
			return nil, err
		}
		if h != info.PreHash.Addr || len(plain) != info.SourceSize {
			return nil, fmt.Errorf("%w: chunk %d plaintext mismatch", ErrCorrupted, info.Index)
		}
		out = append(out, plain...)
	}
	return out, nil
}
