// Package memory 实现一次自加密调用内使用的内容寻址 Chunk 仓库。
//
// 仓库只追加：地址表和 Chunk 表同步增长，已有条目永不修改。
// 同一个地址 Put 两次会留下两条记录，查找永远命中第一条。
// 仓库不是并发安全的，它只属于一次调用。
package memory

import (
	"context"
	"errors"
	"fmt"

	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"
)

var ErrStoreFull = errors.New("chunk store is full")

// entry 指向 arena 中的一段
type entry struct {
	offset int
	size   int
}

// Store 实现了 selfenc.Storage
type Store struct {
	hasher core.Hasher

	addrs   []types.Address  // 地址表 (按追加顺序)
	entries []entry          // 与 addrs 一一对应
	arena   []byte           // 所有 Chunk 首尾相接
	metas   []core.ChunkMeta // 边界表
	index   map[types.Address]int

	// 0 表示不限制
	maxChunks int
	arenaCap  int
}

type Option func(*Store)

// WithLimits 限制块数和总字节数，通常取 Bridge 的容量
func WithLimits(maxChunks, arenaCap int) Option {
	return func(s *Store) {
		s.maxChunks = maxChunks
		s.arenaCap = arenaCap
	}
}

// WithHasher 替换默认的 SHA3-256
func WithHasher(h core.Hasher) Option {
	return func(s *Store) { s.hasher = h }
}

// New 创建一个空仓库
func New(opts ...Option) *Store {
	s := &Store{
		hasher: core.CalculateAddress,
		index:  make(map[types.Address]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateAddress 纯函数：对字节求哈希，不修改仓库
func (s *Store) GenerateAddress(_ context.Context, data []byte) (types.Address, error) {
	return s.hasher(data), nil
}

// Put 追加一条记录。不去重，不覆盖。
func (s *Store) Put(_ context.Context, addr types.Address, data []byte) error {
	if s.maxChunks > 0 && len(s.addrs) >= s.maxChunks {
		return fmt.Errorf("%w: chunk count limit %d reached", ErrStoreFull, s.maxChunks)
	}
	if s.arenaCap > 0 && len(s.arena)+len(data) > s.arenaCap {
		return fmt.Errorf("%w: %d + %d bytes exceeds capacity %d", ErrStoreFull, len(s.arena), len(data), s.arenaCap)
	}

	idx := len(s.addrs)
	s.addrs = append(s.addrs, addr)
	s.entries = append(s.entries, entry{offset: len(s.arena), size: len(data)})
	s.arena = append(s.arena, data...)
	s.metas = append(s.metas, core.ChunkMeta{Index: idx, Size: len(data)})

	// 只记录第一次出现的位置
	if _, ok := s.index[addr]; !ok {
		s.index[addr] = idx
	}
	return nil
}

// Get 返回地址对应 Chunk 的副本
func (s *Store) Get(_ context.Context, addr types.Address) ([]byte, error) {
	idx, ok := s.index[addr]
	if !ok {
		return nil, fmt.Errorf("chunk %s: %w", addr.Short(), storage.ErrNotFound)
	}
	e := s.entries[idx]
	out := make([]byte, e.size)
	copy(out, s.arena[e.offset:e.offset+e.size])
	return out, nil
}

// Delete 不做任何事 (只增不删)
func (s *Store) Delete(_ context.Context, _ types.Address) error {
	return nil
}

// Len 返回已追加的条目数
func (s *Store) Len() int { return len(s.addrs) }

// Metadata 返回边界表的副本
func (s *Store) Metadata() []core.ChunkMeta {
	return append([]core.ChunkMeta(nil), s.metas...)
}

// Addresses 返回地址表的副本 (追加顺序)
func (s *Store) Addresses() []types.Address {
	return append([]types.Address(nil), s.addrs...)
}

// AddressTableSize 返回地址表的字节数 (条目数 × 32)
func (s *Store) AddressTableSize() int {
	return len(s.addrs) * types.AddressSize
}

// Size 返回所有 Chunk 的总字节数
func (s *Store) Size() int { return len(s.arena) }
