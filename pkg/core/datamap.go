package core

import (
	"errors"
	"fmt"

	"chunkvault/pkg/types"
)

var ErrNotManifest = errors.New("object is not a manifest")

// DataMapKind 标记 DataMap 是哪一种变体
type DataMapKind uint8

const (
	KindNone    DataMapKind = iota // 空输入，没有 Chunk 也没有内容
	KindContent                    // 输入太小，不值得切分，原文内联
	KindChunks                     // 有序的 Chunk 列表
)

func (k DataMapKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindContent:
		return "content"
	case KindChunks:
		return "chunks"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ChunkInfo 描述如何从一个已存储的 Chunk 还原原文的一段
type ChunkInfo struct {
	Index      int  `cbor:"i"`
	Address    Link `cbor:"h"` // 加密后内容的地址 (存储 Key)
	PreHash    Link `cbor:"p"` // 加密前明文的哈希 (派生密钥用)
	SourceSize int  `cbor:"s"` // 明文长度
}

// DataMap 是自加密引擎 Close 后的结果 (Tagged Union)
type DataMap struct {
	Kind    DataMapKind `cbor:"k"`
	Content []byte      `cbor:"c,omitempty"`
	Chunks  []ChunkInfo `cbor:"cs,omitempty"`
}

func NoneDataMap() DataMap { return DataMap{Kind: KindNone} }

func ContentDataMap(content []byte) DataMap {
	return DataMap{Kind: KindContent, Content: content}
}

func ChunksDataMap(chunks []ChunkInfo) DataMap {
	return DataMap{Kind: KindChunks, Chunks: chunks}
}

// Len 返回原文长度
func (d DataMap) Len() int {
	switch d.Kind {
	case KindContent:
		return len(d.Content)
	case KindChunks:
		total := 0
		for _, c := range d.Chunks {
			total += c.SourceSize
		}
		return total
	default:
		return 0
	}
}

// Addresses 按 Index 顺序返回所有 Chunk 地址
func (d DataMap) Addresses() []types.Address {
	out := make([]types.Address, len(d.Chunks))
	for i, c := range d.Chunks {
		out[i] = c.Address.Addr
	}
	return out
}

// Manifest 是 DataMap 的可发布形态
type Manifest struct {
	addr     types.Address `cbor:"-"`
	rawBytes []byte        `cbor:"-"`

	TypeVal ObjectType `cbor:"t"`
	Map     DataMap    `cbor:"m"`
}

// NewManifest 序列化 DataMap 并计算清单地址
func NewManifest(d DataMap) (*Manifest, error) {
	m := &Manifest{
		TypeVal: TypeManifest,
		Map:     d,
	}
	addr, b, err := CalculateHash(m)
	if err != nil {
		return nil, err
	}
	m.addr = addr
	m.rawBytes = b
	return m, nil
}

// DecodeManifest 反序列化并做类型防御
func DecodeManifest(data []byte) (DataMap, error) {
	var m Manifest
	if err := DecodeObject(data, &m); err != nil {
		return DataMap{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.TypeVal != TypeManifest {
		return DataMap{}, fmt.Errorf("%w, got: %q", ErrNotManifest, m.TypeVal)
	}
	return m.Map, nil
}

func (m *Manifest) Type() ObjectType  { return TypeManifest }
func (m *Manifest) ID() types.Address { return m.addr }
func (m *Manifest) Bytes() []byte     { return m.rawBytes }
