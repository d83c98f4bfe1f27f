package bridge

import (
	"errors"
	"fmt"
)

var ErrOutOfRange = errors.New("index out of range")

// Region 是一块定长的字节区域
// 边界之外的访问返回 ErrOutOfRange，而不是越界读写
type Region struct {
	name string
	buf  []byte
}

func newRegion(name string, capacity int) *Region {
	return &Region{name: name, buf: make([]byte, capacity)}
}

func (r *Region) Name() string { return r.name }
func (r *Region) Cap() int     { return len(r.buf) }

func (r *Region) outOfRange(i int) error {
	return fmt.Errorf("%w: %s[%d] (capacity %d)", ErrOutOfRange, r.name, i, len(r.buf))
}

// Get 读取单个字节
func (r *Region) Get(i int) (byte, error) {
	if i < 0 || i >= len(r.buf) {
		return 0, r.outOfRange(i)
	}
	return r.buf[i], nil
}

// Set 写入单个字节
func (r *Region) Set(i int, v byte) error {
	if i < 0 || i >= len(r.buf) {
		return r.outOfRange(i)
	}
	r.buf[i] = v
	return nil
}

// Write 从 off 开始批量写入，整段必须落在区域内，否则什么都不写
func (r *Region) Write(off int, p []byte) error {
	if off < 0 || off+len(p) > len(r.buf) {
		return r.outOfRange(off + len(p) - 1)
	}
	copy(r.buf[off:], p)
	return nil
}

// Read 从 off 开始读取 n 个字节的副本
func (r *Region) Read(off, n int) ([]byte, error) {
	if n < 0 {
		return nil, r.outOfRange(off)
	}
	if off < 0 || off+n > len(r.buf) {
		return nil, r.outOfRange(off + n - 1)
	}
	out := make([]byte, n)
	copy(out, r.buf[off:off+n])
	return out, nil
}
