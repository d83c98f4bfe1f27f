package selfenc

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// 帧格式: [mode][payload]
// 只有压缩后更小才使用 zstd，保证加密块不超过 maxChunkSize + 16
const (
	modeRaw  byte = 0
	modeZstd byte = 1
)

func compress(plain []byte, level zstd.EncoderLevel) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()

	packed := enc.EncodeAll(plain, make([]byte, 1, len(plain)/2+1))
	if len(packed)-1 < len(plain) {
		packed[0] = modeZstd
		return packed, nil
	}

	framed := make([]byte, 1+len(plain))
	framed[0] = modeRaw
	copy(framed[1:], plain)
	return framed, nil
}

func decompress(framed []byte, maxSize int) ([]byte, error) {
	if len(framed) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorrupted)
	}
	switch framed[0] {
	case modeRaw:
		return framed[1:], nil
	case modeZstd:
		// zstd 的窗口不会小于 MinWindowSize，内存上限不能低于它
		limit := max(maxSize, zstd.MinWindowSize)
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(uint64(limit)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(framed[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if len(out) > maxSize {
			return nil, fmt.Errorf("%w: decoded %d bytes, limit %d", ErrCorrupted, len(out), maxSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame mode %d", ErrCorrupted, framed[0])
	}
}
