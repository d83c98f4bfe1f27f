package core

import "chunkvault/pkg/types"

// Chunk 代表自加密引擎产出的一个数据块
// 内容是混淆过的，地址由加密后的字节计算
type Chunk struct {
	addr types.Address
	data []byte
}

// NewChunk 用已知地址包装数据 (地址通常来自 Storage.GenerateAddress)
func NewChunk(addr types.Address, data []byte) *Chunk {
	return &Chunk{addr: addr, data: data}
}

// NewChunkFromData 自己计算地址
func NewChunkFromData(data []byte) *Chunk {
	return NewChunk(CalculateAddress(data), data)
}

func (c *Chunk) Type() ObjectType  { return TypeChunk }
func (c *Chunk) ID() types.Address { return c.addr }
func (c *Chunk) Bytes() []byte     { return c.data }
func (c *Chunk) Size() int64       { return int64(len(c.data)) }

// ChunkMeta 记录一个已存储 Chunk 的序号和长度
// Chunk 在内存中首尾相接地存放，没有长度前缀，离开这张表边界就无法恢复
type ChunkMeta struct {
	Index int
	Size  int
}
