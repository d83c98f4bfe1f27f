// Package bridge 提供跨边界调用使用的定长字节区域和标量槽位。
//
// 边界两侧只能交换定长标量和按下标读写的单个字节，
// 所以所有输入输出都经过这里的几块固定容量的区域：
//
//	Input          原始输入
//	Chunks         所有 Chunk 首尾相接
//	DataMap        序列化后的 DataMap (地址表或内联内容)
//	Address        32 字节地址槽
//	EncodedAddress 地址的可打印形式
//
// 以及标量槽位 ExitCode、ChunkCount、ChunkSize[i]、DataMapSize。
// Bridge 由调用方持有，在多次调用之间只作为可复用的草稿内存。
package bridge

import (
	"fmt"
	"sync"

	"chunkvault/pkg/types"
)

const (
	AddressSize           = types.AddressSize
	MaxEncodedAddressSize = 66

	// DefaultChunkSize 是单个加密块的上限：1MB 明文 + 16 字节 CBC 填充
	DefaultChunkSize = 1024*1024 + 16
	DefaultMaxChunks = 50
)

// Capacities 描述所有区域的容量
type Capacities struct {
	ChunkSize int
	MaxChunks int
}

func DefaultCapacities() Capacities {
	return Capacities{ChunkSize: DefaultChunkSize, MaxChunks: DefaultMaxChunks}
}

// IOSize 是 Input 和 Chunks 区域的容量
func (c Capacities) IOSize() int { return c.ChunkSize * c.MaxChunks }

// DataMapSize 是 DataMap 区域的容量
func (c Capacities) DataMapSize() int { return AddressSize * c.MaxChunks }

func (c Capacities) Validate() error {
	if c.ChunkSize <= 0 || c.MaxChunks <= 0 {
		return fmt.Errorf("invalid bridge capacities: chunk_size=%d max_chunks=%d", c.ChunkSize, c.MaxChunks)
	}
	return nil
}

// Bridge 持有一次调用可见的全部状态
type Bridge struct {
	mu   sync.Mutex
	caps Capacities

	Input          *Region
	Chunks         *Region
	DataMap        *Region
	Address        *Region
	EncodedAddress *Region

	exitCode    byte
	chunkCount  int
	chunkSizes  []int
	dataMapSize int
}

// New 按容量分配所有区域
func New(caps Capacities) (*Bridge, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return &Bridge{
		caps:           caps,
		Input:          newRegion("input", caps.IOSize()),
		Chunks:         newRegion("chunks", caps.IOSize()),
		DataMap:        newRegion("datamap", caps.DataMapSize()),
		Address:        newRegion("address", AddressSize),
		EncodedAddress: newRegion("encoded_address", MaxEncodedAddressSize),
		chunkSizes:     make([]int, caps.MaxChunks),
	}, nil
}

func (b *Bridge) Capacities() Capacities { return b.caps }

// Lock 让一次完整的调用成为临界区
func (b *Bridge) Lock()   { b.mu.Lock() }
func (b *Bridge) Unlock() { b.mu.Unlock() }

// --- 标量槽位 ---

func (b *Bridge) ExitCode() byte     { return b.exitCode }
func (b *Bridge) SetExitCode(v byte) { b.exitCode = v }
func (b *Bridge) ChunkCount() int    { return b.chunkCount }
func (b *Bridge) DataMapSize() int   { return b.dataMapSize }

func (b *Bridge) SetChunkCount(n int) error {
	if n < 0 || n > b.caps.MaxChunks {
		return fmt.Errorf("%w: chunk count %d (max %d)", ErrOutOfRange, n, b.caps.MaxChunks)
	}
	b.chunkCount = n
	return nil
}

func (b *Bridge) SetDataMapSize(n int) error {
	if n < 0 || n > b.DataMap.Cap() {
		return fmt.Errorf("%w: datamap size %d (capacity %d)", ErrOutOfRange, n, b.DataMap.Cap())
	}
	b.dataMapSize = n
	return nil
}

func (b *Bridge) ChunkSize(i int) (int, error) {
	if i < 0 || i >= len(b.chunkSizes) {
		return 0, fmt.Errorf("%w: chunk_size[%d] (max chunks %d)", ErrOutOfRange, i, len(b.chunkSizes))
	}
	return b.chunkSizes[i], nil
}

func (b *Bridge) SetChunkSize(i, v int) error {
	if i < 0 || i >= len(b.chunkSizes) {
		return fmt.Errorf("%w: chunk_size[%d] (max chunks %d)", ErrOutOfRange, i, len(b.chunkSizes))
	}
	if v < 0 || v > b.caps.ChunkSize {
		return fmt.Errorf("%w: chunk_size[%d]=%d (chunk capacity %d)", ErrOutOfRange, i, v, b.caps.ChunkSize)
	}
	b.chunkSizes[i] = v
	return nil
}

// --- Chunk 边界 ---

// ChunkOffset 返回第 chunkIndex 块在 Chunks 区域中的起始位置
// 每块长度不同，所以要把之前所有块的长度加起来
func (b *Bridge) ChunkOffset(chunkIndex int) (int, error) {
	if chunkIndex < 0 || chunkIndex >= len(b.chunkSizes) {
		return 0, fmt.Errorf("%w: chunk %d (max chunks %d)", ErrOutOfRange, chunkIndex, len(b.chunkSizes))
	}
	start := 0
	for i := 0; i < chunkIndex; i++ {
		start += b.chunkSizes[i]
	}
	return start, nil
}

// ByteForChunk 读取第 chunkIndex 块的第 byteIndex 个字节
// 只有当前 ChunkCount 之内的块可读，上一次调用留下的块不可见
func (b *Bridge) ByteForChunk(chunkIndex, byteIndex int) (byte, error) {
	if chunkIndex >= b.chunkCount {
		return 0, fmt.Errorf("%w: chunk %d (count %d)", ErrOutOfRange, chunkIndex, b.chunkCount)
	}
	start, err := b.ChunkOffset(chunkIndex)
	if err != nil {
		return 0, err
	}
	if byteIndex < 0 || byteIndex >= b.chunkSizes[chunkIndex] {
		return 0, fmt.Errorf("%w: byte %d of chunk %d (size %d)", ErrOutOfRange, byteIndex, chunkIndex, b.chunkSizes[chunkIndex])
	}
	return b.Chunks.Get(start + byteIndex)
}
