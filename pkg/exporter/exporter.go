package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"chunkvault/pkg/bridge"
	"chunkvault/pkg/core"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/storage/memory"
	"chunkvault/pkg/types"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency 是并发上传/下载的 Chunk 数
const DefaultConcurrency = 8

var ErrBridgeMismatch = errors.New("bridge contents do not match data map")

// Exporter 把一次自加密的结果发布到 Sink，或者从 Sink 还原原文
type Exporter struct {
	store       storage.Store
	concurrency int
}

func NewExporter(store storage.Store) *Exporter {
	return &Exporter{store: store, concurrency: DefaultConcurrency}
}

// WithConcurrency 调整并发度，n <= 0 时保持默认
func (e *Exporter) WithConcurrency(n int) *Exporter {
	if n > 0 {
		e.concurrency = n
	}
	return e
}

// Publish 把 Bridge 中的 Chunk 和 DataMap 清单写入 Sink，返回清单地址
func (e *Exporter) Publish(ctx context.Context, b *bridge.Bridge, dm core.DataMap) (types.Address, error) {
	// 1. 从 Bridge 读出所有 Chunk (持锁，避免读到下一次调用的内容)
	chunks, addrs, err := snapshot(b)
	if err != nil {
		return types.Address{}, err
	}

	// 2. 与 DataMap 交叉校验
	if err := verify(dm, addrs); err != nil {
		return types.Address{}, err
	}

	// 3. 并发上传 Chunk
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range chunks {
		chunk := core.NewChunk(addrs[i], chunks[i])
		g.Go(func() error {
			if err := e.store.Put(gctx, chunk); err != nil {
				return fmt.Errorf("failed to publish chunk %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return types.Address{}, err
	}

	// 4. 最后写清单：清单存在即代表所有 Chunk 都已就位
	manifest, err := core.NewManifest(dm)
	if err != nil {
		return types.Address{}, fmt.Errorf("failed to build manifest: %w", err)
	}
	if err := e.store.Put(ctx, manifest); err != nil {
		return types.Address{}, fmt.Errorf("failed to publish manifest: %w", err)
	}
	return manifest.ID(), nil
}

func snapshot(b *bridge.Bridge) ([][]byte, []types.Address, error) {
	b.Lock()
	defer b.Unlock()

	chunks, err := b.CollectChunks()
	if err != nil {
		return nil, nil, err
	}
	addrs := make([]types.Address, len(chunks))
	for i := range chunks {
		if addrs[i], err = b.ChunkAddress(i); err != nil {
			return nil, nil, err
		}
	}
	return chunks, addrs, nil
}

func verify(dm core.DataMap, addrs []types.Address) error {
	if dm.Kind != core.KindChunks {
		if len(addrs) != 0 {
			return fmt.Errorf("%w: %s data map with %d chunks", ErrBridgeMismatch, dm.Kind, len(addrs))
		}
		return nil
	}
	if len(dm.Chunks) != len(addrs) {
		return fmt.Errorf("%w: %d chunks in data map, %d in bridge", ErrBridgeMismatch, len(dm.Chunks), len(addrs))
	}
	for _, info := range dm.Chunks {
		if info.Index < 0 || info.Index >= len(addrs) || addrs[info.Index] != info.Address.Addr {
			return fmt.Errorf("%w: chunk %d", ErrBridgeMismatch, info.Index)
		}
	}
	return nil
}

// ReadManifest 读取并解码清单
func (e *Exporter) ReadManifest(ctx context.Context, addr types.Address) (core.DataMap, error) {
	data, err := e.readAll(ctx, addr)
	if err != nil {
		return core.DataMap{}, fmt.Errorf("failed to get manifest: %w", err)
	}
	return core.DecodeManifest(data)
}

// Restore 根据清单地址还原原文并写入 writer
func (e *Exporter) Restore(ctx context.Context, manifestAddr types.Address, w io.Writer, opts ...selfenc.Option) error {
	// 1. 获取清单
	dm, err := e.ReadManifest(ctx, manifestAddr)
	if err != nil {
		return err
	}

	// 2. 并发拉取所有 Chunk
	infos := append([]core.ChunkInfo(nil), dm.Chunks...)
	sort.Slice(infos, func(i, j int) bool { return infos[i].Index < infos[j].Index })

	chunks := make([][]byte, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, info := range infos {
		g.Go(func() error {
			data, err := e.readAll(gctx, info.Address.Addr)
			if err != nil {
				return fmt.Errorf("failed to get chunk %d: %w", info.Index, err)
			}
			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 3. 放进一个临时的内存仓库，交给引擎解密
	local := memory.New()
	for i, info := range infos {
		if err := local.Put(ctx, info.Address.Addr, chunks[i]); err != nil {
			return err
		}
	}
	plain, err := selfenc.Decrypt(ctx, dm, local, opts...)
	if err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}

	if _, err := w.Write(plain); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (e *Exporter) readAll(ctx context.Context, addr types.Address) ([]byte, error) {
	reader, err := e.store.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
