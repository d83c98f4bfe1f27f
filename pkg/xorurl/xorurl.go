// Package xorurl 把 32 字节内容地址编码为可打印的 safe:// 定位串。
//
// 格式: "safe://" + multibase 前缀字符 + encode(payload)
// payload = [version, contentType(2 字节大端), dataType, address(32 字节)]
package xorurl

import (
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"chunkvault/pkg/types"
)

const (
	Scheme = "safe://"

	encodingVersion byte   = 1
	contentTypeRaw  uint16 = 0
	dataTypeSafeKey byte   = 0

	payloadSize = 4 + types.AddressSize
)

var (
	ErrUnknownBase = errors.New("unknown url base")
	ErrMalformed   = errors.New("malformed xor-url")
)

// Base 是 multibase 编码方式
type Base byte

const (
	Base32z Base = 'h'
	Base32  Base = 'b'
	Base64  Base = 'm'
)

var (
	base32zEncoding = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769").WithPadding(base32.NoPadding)
	base32Encoding  = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
)

// ParseBase 解析配置中的名字 ("base32z", "base32", "base64")
func ParseBase(name string) (Base, error) {
	switch strings.ToLower(name) {
	case "", "base32z":
		return Base32z, nil
	case "base32":
		return Base32, nil
	case "base64":
		return Base64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBase, name)
	}
}

func (b Base) String() string {
	switch b {
	case Base32z:
		return "base32z"
	case Base32:
		return "base32"
	case Base64:
		return "base64"
	default:
		return fmt.Sprintf("base(%q)", rune(b))
	}
}

func (b Base) encoder() (interface {
	EncodeToString([]byte) string
	DecodeString(string) ([]byte, error)
}, error) {
	switch b {
	case Base32z:
		return base32zEncoding, nil
	case Base32:
		return base32Encoding, nil
	case Base64:
		return base64.RawStdEncoding, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBase, rune(b))
	}
}

// Encode 生成地址的 safe:// 定位串
func Encode(addr types.Address, base Base) (string, error) {
	enc, err := base.encoder()
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, payloadSize)
	payload = append(payload, encodingVersion, byte(contentTypeRaw>>8), byte(contentTypeRaw), dataTypeSafeKey)
	payload = append(payload, addr[:]...)

	return Scheme + string(rune(base)) + enc.EncodeToString(payload), nil
}

// Decode 是 Encode 的逆操作
func Decode(url string) (types.Address, Base, error) {
	rest, ok := strings.CutPrefix(url, Scheme)
	if !ok || len(rest) < 2 {
		return types.Address{}, 0, fmt.Errorf("%w: missing %s prefix", ErrMalformed, Scheme)
	}

	base := Base(rest[0])
	enc, err := base.encoder()
	if err != nil {
		return types.Address{}, 0, err
	}

	payload, err := enc.DecodeString(rest[1:])
	if err != nil {
		return types.Address{}, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(payload) != payloadSize {
		return types.Address{}, 0, fmt.Errorf("%w: payload is %d bytes", ErrMalformed, len(payload))
	}
	if payload[0] != encodingVersion {
		return types.Address{}, 0, fmt.Errorf("%w: unsupported version %d", ErrMalformed, payload[0])
	}

	addr, err := types.AddressFromBytes(payload[4:])
	if err != nil {
		return types.Address{}, 0, err
	}
	return addr, base, nil
}
