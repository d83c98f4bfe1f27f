package meta

import (
	"context"
	"testing"

	"chunkvault/pkg/core"
	"chunkvault/pkg/types"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// mockAddr 生成合法的测试用地址
func mockAddr(input string) types.Address {
	return core.CalculateAddress([]byte(input))
}

// sampleRun 构造一条 3 块的运行记录
func sampleRun(input string) Run {
	return Run{
		InputDigest:     mockAddr(input),
		InputSize:       3072,
		Kind:            core.KindChunks.String(),
		ChunkCount:      3,
		DataMapSize:     96,
		ManifestAddress: mockAddr("manifest:" + input),
		Addresses:       []types.Address{mockAddr(input + "0"), mockAddr(input + "1"), mockAddr(input + "2")},
	}
}

// mustRecordRun 写入运行记录，失败则终止
func mustRecordRun(t *testing.T, repo *Repository, run Run, msgAndArgs ...any) *RunRecord {
	t.Helper()
	rec, err := repo.RecordRun(context.Background(), run)
	require.NoError(t, err, msgAndArgs...)
	return rec
}

// mustUpdateLabel 强制更新标签，失败则终止
func mustUpdateLabel(t *testing.T, repo *Repository, name string, manifest types.Address, oldVersion int64, msgAndArgs ...any) {
	t.Helper()
	err := repo.UpdateLabel(context.Background(), name, manifest, oldVersion)
	require.NoError(t, err, msgAndArgs...)
}
