package chunker

// 自加密场景的默认切分配置 (单位: 字节)
const (
	MinSize = 1024        // 1KB，小于 3*MinSize 的输入直接内联
	MaxSize = 1024 * 1024 // 1MB
)

// MinChunks 是切分时的最少块数
// 每块的密钥由前两块的明文哈希派生，所以至少要 3 块
const MinChunks = 3

// Chunker 是一个无状态的定长切分工具
type Chunker struct {
	minSize int
	maxSize int
}

// NewChunkerWithSizes 按配置的块大小创建 Chunker
// 非法值会回落到默认值
func NewChunkerWithSizes(minSize, maxSize int) *Chunker {
	if minSize <= 0 {
		minSize = MinSize
	}
	if maxSize < minSize {
		maxSize = max(MaxSize, minSize)
	}
	return &Chunker{minSize: minSize, maxSize: maxSize}
}

func (c *Chunker) MinSize() int { return c.minSize }
func (c *Chunker) MaxSize() int { return c.maxSize }

// Inline 判断该长度的输入是否应该内联到 DataMap 中 (不切分)
func (c *Chunker) Inline(total int) bool {
	return total < MinChunks*c.minSize
}

// Cut 计算一个长度为 total 的输入的切点。
// 返回值:
//
//	[]int: 每一块的结束 offset，最后一个等于 total。内联输入返回 nil。
func (c *Chunker) Cut(total int) []int {
	sizes := c.Sizes(total)
	if len(sizes) == 0 {
		return nil
	}
	cutPoints := make([]int, len(sizes))
	end := 0
	for i, s := range sizes {
		end += s
		cutPoints[i] = end
	}
	return cutPoints
}

// Sizes 返回每一块的长度
func (c *Chunker) Sizes(total int) []int {
	// 1. 太小，直接内联
	if c.Inline(total) {
		return nil
	}

	// 2. 不足 3 个最大块：均分成 3 块，余数从前往后每块分 1 字节
	if total < MinChunks*c.maxSize {
		size, rem := total/MinChunks, total%MinChunks
		sizes := []int{size, size, size}
		for i := 0; i < rem; i++ {
			sizes[i]++
		}
		return sizes
	}

	// 3. 以最大块为单位切
	n := total / c.maxSize
	rem := total % c.maxSize
	sizes := make([]int, n, n+1)
	for i := range sizes {
		sizes[i] = c.maxSize
	}

	switch {
	case rem == 0:
	case rem >= c.minSize:
		// 余数够一个最小块，单独成块
		sizes = append(sizes, rem)
	default:
		// 余数太小：从倒数第一块借 minSize，凑成合法的尾块
		sizes[n-1] = c.maxSize - c.minSize
		sizes = append(sizes, c.minSize+rem)
	}
	return sizes
}
