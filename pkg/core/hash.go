package core

import (
	"fmt"

	"chunkvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

// Hasher 把字节映射为 32 字节内容地址
type Hasher func(data []byte) types.Address

// 定义确定性的 CBOR 编码选项
var encOptions = cbor.EncOptions{
	// 1. 强制 Map Key 排序 (Canonical)
	// 保证相同的 DataMap 生成唯一的清单地址
	Sort: cbor.SortCanonical,

	// 2. 浮点数必须使用 64 位表示
	ShortestFloat: cbor.ShortestFloatNone,

	// 3. 禁止不定长编码 (Indefinite Length)
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

// 全局复用的编码模式
var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// --- 安全性配置 (防 DoS 攻击) ---
	MaxArrayElements: 10000,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
}

var dm, _ = decOptions.DecMode()

// CalculateAddress 计算原始字节的 SHA3-256 地址
func CalculateAddress(data []byte) types.Address {
	return types.Address(sha3.Sum256(data))
}

// CalculateHash 计算对象的地址和序列化数据
func CalculateHash(v any) (types.Address, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return types.Address{}, nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return CalculateAddress(data), data, nil
}

// DecodeObject 通用的解码函数 (供外部使用)
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}
