package selfenc

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"chunkvault/pkg/types"
)

// chunkKeys 是一块 Chunk 的加密材料
// 全部由相邻块的明文哈希派生：不知道 DataMap 就无法解密任何一块
type chunkKeys struct {
	key [32]byte
	iv  [aes.BlockSize]byte
	pad [3 * types.AddressSize]byte
}

// deriveKeys 为第 i 块派生密钥
// key 来自前一块，iv 来自前两块，pad 由本块和前两块拼成 (环形取前驱)
func deriveKeys(i int, preHashes []types.Address) chunkKeys {
	n := len(preHashes)
	n1 := preHashes[(i+n-1)%n]
	n2 := preHashes[(i+n-2)%n]

	var k chunkKeys
	k.key = n1
	copy(k.iv[:], n2[:aes.BlockSize])
	copy(k.pad[0:], preHashes[i][:])
	copy(k.pad[types.AddressSize:], n1[:])
	copy(k.pad[2*types.AddressSize:], n2[:])
	return k
}

func xorPad(data []byte, pad []byte) {
	for i := range data {
		data[i] ^= pad[i%len(pad)]
	}
}

// seal: AES-256-CBC + PKCS#7，然后与 pad 异或
func seal(plain []byte, k chunkKeys) ([]byte, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, err
	}
	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain)+padLen)
	copy(buf, plain)
	copy(buf[len(plain):], bytes.Repeat([]byte{byte(padLen)}, padLen))

	cipher.NewCBCEncrypter(block, k.iv[:]).CryptBlocks(buf, buf)
	xorPad(buf, k.pad[:])
	return buf, nil
}

// open 是 seal 的逆操作
func open(sealed []byte, k chunkKeys) ([]byte, error) {
	if len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrCorrupted, len(sealed))
	}
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, err
	}
	buf := append([]byte(nil), sealed...)
	xorPad(buf, k.pad[:])
	cipher.NewCBCDecrypter(block, k.iv[:]).CryptBlocks(buf, buf)

	padLen := int(buf[len(buf)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(buf) {
		return nil, fmt.Errorf("%w: bad padding", ErrCorrupted)
	}
	for _, b := range buf[len(buf)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: bad padding", ErrCorrupted)
		}
	}
	return buf[:len(buf)-padLen], nil
}
