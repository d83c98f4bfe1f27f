package core

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. 地址计算
// -----------------------------------------------------------------------------

func TestCalculateAddress_Deterministic(t *testing.T) {
	a1 := CalculateAddress([]byte("hello"))
	a2 := CalculateAddress([]byte("hello"))
	b := CalculateAddress([]byte("hellp"))

	assert.Equal(t, a1, a2, "相同输入必须得到相同地址")
	assert.NotEqual(t, a1, b)
	// SHA3-256("hello")
	assert.Equal(t, "3338be694f50c5f338814986cdf0686453a888b84f424d792af4b9202398f392", a1.String())
}

// -----------------------------------------------------------------------------
// 2. Link 测试
// -----------------------------------------------------------------------------

func TestLink_Marshal_Compliance(t *testing.T) {
	link := NewLink(mockAddr("test-content"))

	data, err := link.MarshalCBOR()
	require.NoError(t, err)

	// Tag 42 (0xd82a) + ByteString 33 bytes (0x5821) + Prefix (0x00)
	expectedPrefix := "d82a582100"
	encodedHex := hex.EncodeToString(data)

	assert.Equal(t, expectedPrefix, encodedHex[:10], "Link 序列化必须包含 Tag 42 和 0x00 前缀")
}

func TestLink_Unmarshal_RoundTrip(t *testing.T) {
	original := mockAddr("round-trip-test")
	link := NewLink(original)

	data, err := link.MarshalCBOR()
	require.NoError(t, err)

	var l2 Link
	require.NoError(t, l2.UnmarshalCBOR(data))
	assert.Equal(t, original, l2.Addr)
}

func TestLink_Unmarshal_Strictness(t *testing.T) {
	addrHex := mockAddr("bad").String()

	// Case A: 缺少 0x00 前缀
	badPrefixBytes, _ := hex.DecodeString("d82a5820" + addrHex)
	var l Link
	err := l.UnmarshalCBOR(badPrefixBytes)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing 0x00 multibase prefix")

	// Case B: 错误的 Tag (不是 42)
	wrongTagBytes, _ := hex.DecodeString("d82b582100" + addrHex)
	assert.Error(t, l.UnmarshalCBOR(wrongTagBytes))

	// Case C: 地址过短 (0x00 + 4 bytes)
	shortBytes, _ := hex.DecodeString("d82a450001020304")
	err = l.UnmarshalCBOR(shortBytes)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")
}

// -----------------------------------------------------------------------------
// 3. DataMap / Manifest
// -----------------------------------------------------------------------------

func TestDataMap_Len(t *testing.T) {
	tests := []struct {
		name string
		in   DataMap
		want int
	}{
		{"none", NoneDataMap(), 0},
		{"content", ContentDataMap([]byte("abc")), 3},
		{"chunks", ChunksDataMap(sampleChunks()), 3073},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Len())
			assert.Equal(t, tt.name, tt.in.Kind.String())
		})
	}
}

func TestManifest_Canonical(t *testing.T) {
	m1 := mustNewManifest(t, ChunksDataMap(sampleChunks()))
	m2 := mustNewManifest(t, ChunksDataMap(sampleChunks()))

	assert.Equal(t, m1.ID(), m2.ID(), "清单地址必须具备确定性")
	assert.Equal(t, m1.Bytes(), m2.Bytes())
	assert.Equal(t, TypeManifest, m1.Type())
}

func TestManifest_RoundTrip(t *testing.T) {
	original := ChunksDataMap(sampleChunks())
	m := mustNewManifest(t, original)

	decoded, err := DecodeManifest(m.Bytes())
	require.NoError(t, err)

	assert.Equal(t, KindChunks, decoded.Kind)
	require.Len(t, decoded.Chunks, 3)
	assert.Equal(t, original.Addresses(), decoded.Addresses())
	assert.Equal(t, 1025, decoded.Chunks[2].SourceSize)

	content := mustNewManifest(t, ContentDataMap([]byte("inline")))
	decoded, err = DecodeManifest(content.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), decoded.Content)
}

func TestDecodeManifest_WrongType(t *testing.T) {
	_, raw, err := CalculateHash(struct {
		TypeVal ObjectType `cbor:"t"`
	}{TypeVal: TypeChunk})
	require.NoError(t, err)

	_, err = DecodeManifest(raw)
	assert.ErrorIs(t, err, ErrNotManifest)
}

func TestChunk_Object(t *testing.T) {
	c := NewChunkFromData([]byte("data"))
	assert.Equal(t, TypeChunk, c.Type())
	assert.Equal(t, CalculateAddress([]byte("data")), c.ID())
	assert.Equal(t, int64(4), c.Size())
}
