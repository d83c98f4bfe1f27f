package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func TestChunker_Inline(t *testing.T) {
	c := NewChunkerWithSizes(MinSize, MaxSize)

	assert.True(t, c.Inline(0))
	assert.True(t, c.Inline(100))
	assert.True(t, c.Inline(3*MinSize-1))
	assert.False(t, c.Inline(3*MinSize))

	assert.Nil(t, c.Cut(100), "内联输入不产生切点")
}

func TestChunker_Sizes(t *testing.T) {
	c := NewChunkerWithSizes(1024, 4096)

	tests := []struct {
		name  string
		total int
		want  []int
	}{
		{"exactly 3 min chunks", 3072, []int{1024, 1024, 1024}},
		{"three with remainder", 3074, []int{1025, 1025, 1024}},
		{"just below 3 max", 3*4096 - 1, []int{4096, 4096, 4095}},
		{"exact multiple of max", 4 * 4096, []int{4096, 4096, 4096, 4096}},
		{"remainder >= min", 3*4096 + 2000, []int{4096, 4096, 4096, 2000}},
		{"remainder < min", 3*4096 + 10, []int{4096, 4096, 4096 - 1024, 1024 + 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Sizes(tt.total)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, sum(got), "所有块长度之和必须等于输入长度")
		})
	}
}

func TestChunker_Cut_Deterministic(t *testing.T) {
	c := NewChunkerWithSizes(MinSize, MaxSize)
	total := 5*MaxSize + 17

	cuts1 := c.Cut(total)
	assert.NotEmpty(t, cuts1)
	assert.Equal(t, total, cuts1[len(cuts1)-1], "最后一块必须结束于输入末尾")

	cuts2 := c.Cut(total)
	assert.Equal(t, cuts1, cuts2, "对于相同长度，切分点必须完全一致")
}

func TestChunker_MinMaxConstraints(t *testing.T) {
	c := NewChunkerWithSizes(MinSize, MaxSize)
	for _, total := range []int{3 * MinSize, 10 * 1024, 3 * MaxSize, 7*MaxSize + 1, 7*MaxSize + MinSize} {
		start := 0
		for i, end := range c.Cut(total) {
			size := end - start
			assert.GreaterOrEqual(t, size, MinSize, "total %d: chunk %d size %d too small", total, i, size)
			assert.LessOrEqual(t, size, MaxSize, "total %d: chunk %d size %d too large", total, i, size)
			start = end
		}
	}
}

func TestNewChunkerWithSizes_Fallback(t *testing.T) {
	c := NewChunkerWithSizes(0, -1)
	assert.Equal(t, MinSize, c.MinSize())
	assert.Equal(t, MaxSize, c.MaxSize())
}
