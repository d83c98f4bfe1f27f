package core

import (
	"fmt"

	"chunkvault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Link 是 DataMap 里指向 Chunk 的地址引用
// 在 CBOR 层面，它会被序列化为 Tag 42(0x00 + AddressBytes)
type Link struct {
	Addr types.Address
}

const (
	linkTagNumber = 42
)

func NewLink(addr types.Address) Link {
	return Link{Addr: addr}
}

// MarshalCBOR 规范：Tag 42, Content = [0x00, byte1, byte2...]
func (l Link) MarshalCBOR() ([]byte, error) {
	cidBytes := append([]byte{0x00}, l.Addr[:]...)
	return em.Marshal(cbor.Tag{
		Number:  linkTagNumber,
		Content: cidBytes,
	})
}

func (l *Link) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := dm.Unmarshal(data, &tag); err != nil {
		return err
	}

	// 1. 校验 Tag Number
	if tag.Number != linkTagNumber {
		return fmt.Errorf("expected tag 42 for Link, got %d", tag.Number)
	}

	// 2. 获取内容字节
	bytes, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("link content must be byte string")
	}

	// 3. 严格校验 Multibase 前缀
	if len(bytes) < 1 {
		return fmt.Errorf("invalid link: empty content")
	}
	if bytes[0] != 0x00 {
		return fmt.Errorf("invalid link: missing 0x00 multibase prefix")
	}

	// 4. 还原地址 (去掉前缀)，长度必须正好 32
	addr, err := types.AddressFromBytes(bytes[1:])
	if err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}
	l.Addr = addr
	return nil
}
