package core

import "chunkvault/pkg/types"

// ObjectType 定义了 chunkvault 中可发布的对象类型
type ObjectType string

const (
	TypeChunk    ObjectType = "chunk"    // 自加密后的数据块
	TypeManifest ObjectType = "manifest" // DataMap 清单
)

// Object 是所有可写入 Sink 的对象的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的内容地址
	ID() types.Address

	// Bytes 返回对象的序列化数据 (用于存储)
	Bytes() []byte
}
