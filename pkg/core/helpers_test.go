package core

import (
	"testing"

	"chunkvault/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 辅助工具
// -----------------------------------------------------------------------------

// mockAddr 生成一个确定性的 32 字节地址
func mockAddr(input string) types.Address {
	return CalculateAddress([]byte(input))
}

// mustNewManifest 创建 Manifest，如果失败直接终止测试
func mustNewManifest(t *testing.T, d DataMap, msgAndArgs ...any) *Manifest {
	t.Helper()
	m, err := NewManifest(d)
	require.NoError(t, err, msgAndArgs...)
	return m
}

func sampleChunks() []ChunkInfo {
	return []ChunkInfo{
		{Index: 0, Address: NewLink(mockAddr("c0")), PreHash: NewLink(mockAddr("p0")), SourceSize: 1024},
		{Index: 1, Address: NewLink(mockAddr("c1")), PreHash: NewLink(mockAddr("p1")), SourceSize: 1024},
		{Index: 2, Address: NewLink(mockAddr("c2")), PreHash: NewLink(mockAddr("p2")), SourceSize: 1025},
	}
}
