// pkg/types/common.go
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// AddressSize 是内容地址的固定长度 (SHA3-256 输出)
const AddressSize = 32

var ErrInvalidAddress = errors.New("invalid address")

// Address 代表 Chunk 的内容地址 (AddressableName)
// 这是一个“值对象”，一旦计算出来就不可变。
type Address [AddressSize]byte

// AddressFromBytes 从切片构造地址
// 长度必须严格等于 32，更短的输入不允许做前缀匹配，直接视为调用方错误
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress 解析 64 字符的 Hex 字符串
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return AddressFromBytes(b)
}

func (a Address) String() string { return hex.EncodeToString(a[:]) }
func (a Address) Bytes() []byte  { return a[:] }

// Short 返回前 7 个 Hex 字符，用于展示
func (a Address) Short() string { return a.String()[:7] + "..." }

func (a Address) IsZero() bool { return a == Address{} }

// AddressPrefix 是用户输入的短哈希 (Hex)
type AddressPrefix string

func (p AddressPrefix) String() string { return string(p) }
