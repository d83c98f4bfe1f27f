package bridge

import (
	"fmt"

	"chunkvault/pkg/types"
)

// 以下是调用方一侧的辅助函数，把逐字节的访问包装成整段读写。

// LoadInput 把原始输入写进 Input 区域
func (b *Bridge) LoadInput(data []byte) error {
	if len(data) > b.Input.Cap() {
		return fmt.Errorf("%w: input of %d bytes (capacity %d)", ErrOutOfRange, len(data), b.Input.Cap())
	}
	return b.Input.Write(0, data)
}

// DataMapBytes 读取 DataMap 区域中有效的部分
func (b *Bridge) DataMapBytes() ([]byte, error) {
	return b.DataMap.Read(0, b.dataMapSize)
}

// ChunkBytes 读取第 i 块的完整内容
func (b *Bridge) ChunkBytes(i int) ([]byte, error) {
	if i < 0 || i >= b.chunkCount {
		return nil, fmt.Errorf("%w: chunk %d (count %d)", ErrOutOfRange, i, b.chunkCount)
	}
	start, err := b.ChunkOffset(i)
	if err != nil {
		return nil, err
	}
	return b.Chunks.Read(start, b.chunkSizes[i])
}

// CollectChunks 读取所有已发布的 Chunk，顺序与引擎分配的序号一致
func (b *Bridge) CollectChunks() ([][]byte, error) {
	chunks := make([][]byte, 0, b.chunkCount)
	for i := 0; i < b.chunkCount; i++ {
		c, err := b.ChunkBytes(i)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// ChunkAddress 读取 DataMap 区域中第 i 个 32 字节地址
func (b *Bridge) ChunkAddress(i int) (types.Address, error) {
	raw, err := b.DataMap.Read(i*AddressSize, AddressSize)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromBytes(raw)
}

// SetAddress 填写地址槽
func (b *Bridge) SetAddress(addr types.Address) error {
	return b.Address.Write(0, addr[:])
}

// AddressValue 读取地址槽
func (b *Bridge) AddressValue() (types.Address, error) {
	raw, err := b.Address.Read(0, AddressSize)
	if err != nil {
		return types.Address{}, err
	}
	return types.AddressFromBytes(raw)
}

// EncodedAddressString 读取 EncodedAddress 槽中前 n 个有效字节
func (b *Bridge) EncodedAddressString(n int) (string, error) {
	raw, err := b.EncodedAddress.Read(0, n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
