package exporter

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"chunkvault/pkg/bridge"
	"chunkvault/pkg/core"
	"chunkvault/pkg/pipeline"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/storage/cache"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/types"
	"chunkvault/pkg/xorurl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engineSizes = selfenc.WithChunkSizes(256, 1024)

// encryptToBridge 跑一次完整的自加密，返回 Bridge 和 DataMap
func encryptToBridge(t *testing.T, input []byte) (*bridge.Bridge, core.DataMap) {
	t.Helper()
	b, err := bridge.New(bridge.Capacities{ChunkSize: 1024 + 16, MaxChunks: 16})
	require.NoError(t, err)
	require.NoError(t, b.LoadInput(input))

	p := pipeline.New(
		pipeline.WithEngineOptions(engineSizes),
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	dm, err := p.Encrypt(context.Background(), b, len(input))
	require.NoError(t, err)
	return b, dm
}

func randomInput(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestPublishAndRestore_RoundTrip(t *testing.T) {
	sizes := map[string]int{
		"empty":   0,
		"inline":  100,
		"chunked": 10 * 1024,
	}

	for name, size := range sizes {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, err := disk.NewAdapter(t.TempDir())
			require.NoError(t, err)
			exp := NewExporter(store)

			input := randomInput(t, size)
			b, dm := encryptToBridge(t, input)

			// 1. 发布
			manifestAddr, err := exp.Publish(ctx, b, dm)
			require.NoError(t, err)

			// 所有 Chunk 都在 Sink 中
			for _, addr := range dm.Addresses() {
				ok, err := store.Has(ctx, addr)
				require.NoError(t, err)
				assert.True(t, ok, "chunk %s should be published", addr.Short())
			}

			// 2. 还原
			var restored bytes.Buffer
			require.NoError(t, exp.Restore(ctx, manifestAddr, &restored, engineSizes))

			assert.Equal(t, len(input), restored.Len())
			assert.True(t, bytes.Equal(input, restored.Bytes()), "restored data mismatch")
		})
	}
}

func TestPublish_Mismatch(t *testing.T) {
	ctx := context.Background()
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	exp := NewExporter(store)

	b, dm := encryptToBridge(t, randomInput(t, 4096))

	// DataMap 来自另一次调用
	_, other := encryptToBridge(t, randomInput(t, 4096))
	_, err = exp.Publish(ctx, b, other)
	assert.ErrorIs(t, err, ErrBridgeMismatch)

	_, err = exp.Publish(ctx, b, core.NoneDataMap())
	assert.ErrorIs(t, err, ErrBridgeMismatch)

	// 清单没有被写入
	manifest, err := core.NewManifest(dm)
	require.NoError(t, err)
	ok, err := store.Has(ctx, manifest.ID())
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingStore 在第 n 次 Put 时失败
type failingStore struct {
	storage.Store
	failAt int32
	puts   int32
}

func (f *failingStore) Put(ctx context.Context, obj core.Object) error {
	if atomic.AddInt32(&f.puts, 1) == f.failAt {
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, obj)
}

func TestPublish_ChunkFailure(t *testing.T) {
	ctx := context.Background()
	backend, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	store := &failingStore{Store: backend, failAt: 2}

	b, dm := encryptToBridge(t, randomInput(t, 4096))
	_, err = NewExporter(store).WithConcurrency(1).Publish(ctx, b, dm)
	assert.ErrorContains(t, err, "disk full")

	// 清单不能在 Chunk 失败后出现
	manifest, err := core.NewManifest(dm)
	require.NoError(t, err)
	ok, err := backend.Has(ctx, manifest.ID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestore_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	exp := NewExporter(store)

	t.Run("Missing Manifest", func(t *testing.T) {
		err := exp.Restore(ctx, core.CalculateAddress([]byte("nothing")), io.Discard)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Not A Manifest", func(t *testing.T) {
		chunk := core.NewChunkFromData([]byte("raw bytes"))
		require.NoError(t, store.Put(ctx, chunk))

		err := exp.Restore(ctx, chunk.ID(), io.Discard)
		assert.Error(t, err)
	})

	t.Run("Missing Chunk", func(t *testing.T) {
		_, dm := encryptToBridge(t, randomInput(t, 4096))
		manifest, err := core.NewManifest(dm)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, manifest))

		err = exp.Restore(ctx, manifest.ID(), io.Discard, engineSizes)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

// MetricStore 统计底层调用次数，用于验证缓存命中
type MetricStore struct {
	storage.Store
	putCount int32
}

func (m *MetricStore) Put(ctx context.Context, obj core.Object) error {
	atomic.AddInt32(&m.putCount, 1)
	return m.Store.Put(ctx, obj)
}

// TestWorkflow_RedisCache: 加密 -> 发布 (Redis 缓存) -> 再次发布命中缓存 -> 还原
func TestWorkflow_RedisCache(t *testing.T) {
	redisAddr := "localhost:6379"
	if conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second); err != nil {
		t.Skip("Skipping workflow test: Redis not available")
	} else {
		conn.Close()
	}

	ctx := context.Background()
	diskStore, err := disk.NewAdapter(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)
	spy := &MetricStore{Store: diskStore}

	cachedStore, err := cache.New(spy, cache.Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	defer cachedStore.Close()

	exp := NewExporter(cachedStore)
	input := randomInput(t, 12*1024)
	b, dm := encryptToBridge(t, input)

	// 1. 冷发布：每个 Chunk + 清单都写到磁盘
	manifestAddr, err := exp.Publish(ctx, b, dm)
	require.NoError(t, err)
	cold := atomic.LoadInt32(&spy.putCount)
	assert.Equal(t, int32(len(dm.Chunks)+1), cold)

	// 2. 热发布：全部命中缓存
	again, err := exp.Publish(ctx, b, dm)
	require.NoError(t, err)
	assert.Equal(t, manifestAddr, again)
	assert.Equal(t, cold, atomic.LoadInt32(&spy.putCount), "warm publish should not touch the backend")

	// 3. 还原
	var restored bytes.Buffer
	require.NoError(t, exp.Restore(ctx, manifestAddr, &restored, engineSizes))
	assert.Equal(t, input, restored.Bytes())
}

func TestPrintDataMap(t *testing.T) {
	_, dm := encryptToBridge(t, randomInput(t, 4096))

	var buf bytes.Buffer
	require.NoError(t, PrintDataMap(&buf, dm, xorurl.Base32z))

	out := buf.String()
	assert.Contains(t, out, "Kind:   chunks")
	assert.Contains(t, out, "4.000 KiB")
	assert.Contains(t, out, "INDEX")
	for _, info := range dm.Chunks {
		url, err := xorurl.Encode(info.Address.Addr, xorurl.Base32z)
		require.NoError(t, err)
		assert.Contains(t, out, url)
		assert.Contains(t, out, info.Address.Addr.Short())
	}

	buf.Reset()
	require.NoError(t, PrintDataMap(&buf, core.ContentDataMap([]byte("abc")), xorurl.Base32z))
	assert.Contains(t, buf.String(), "Kind:   content")
	assert.NotContains(t, buf.String(), "INDEX")
}

func TestPrintObject(t *testing.T) {
	ctx := context.Background()
	store, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	exp := NewExporter(store)

	b, dm := encryptToBridge(t, randomInput(t, 4096))
	manifestAddr, err := exp.Publish(ctx, b, dm)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exp.PrintObject(ctx, manifestAddr, &buf, xorurl.Base32z))
	assert.Contains(t, buf.String(), "Type:   Manifest")

	buf.Reset()
	require.NoError(t, exp.PrintObject(ctx, dm.Chunks[0].Address.Addr, &buf, xorurl.Base32z))
	assert.Contains(t, buf.String(), "Type: Chunk")

	err = exp.PrintObject(ctx, types.Address{}, &buf, xorurl.Base32z)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTidySize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.000 KiB"},
		{1536, "1.500 KiB"},
		{1024 * 1024, "1.000 MiB"},
		{3 * 1024 * 1024 / 2, "1.500 MiB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TidySize(tt.in))
		})
	}
}
