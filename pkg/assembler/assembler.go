// Package assembler 把引擎产出的 DataMap 展开到 Bridge 的几块平铺区域里。
//
// 写入之前先完成全部校验和取块：任何一步失败都不会留下写了一半的 DataMap。
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chunkvault/pkg/bridge"
	"chunkvault/pkg/core"
	"chunkvault/pkg/types"
)

var (
	ErrTooManyChunks = errors.New("too many chunks for bridge")
	ErrChunkIndex    = errors.New("invalid chunk index")
	ErrTooLarge      = errors.New("data map does not fit bridge")
)

// ChunkSource 是装配需要的存储能力
type ChunkSource interface {
	Get(ctx context.Context, addr types.Address) ([]byte, error)
	AddressTableSize() int
}

// Assemble 把 dm 发布到 b。调用方负责持有 b 的锁。
func Assemble(ctx context.Context, dm core.DataMap, src ChunkSource, b *bridge.Bridge) error {
	switch dm.Kind {
	case core.KindNone:
		return publishScalars(b, 0, 0)
	case core.KindContent:
		return assembleContent(dm.Content, b)
	case core.KindChunks:
		return assembleChunks(ctx, dm.Chunks, src, b)
	default:
		return fmt.Errorf("unknown data map kind: %s", dm.Kind)
	}
}

func publishScalars(b *bridge.Bridge, chunkCount, dataMapSize int) error {
	if err := b.SetChunkCount(chunkCount); err != nil {
		return err
	}
	return b.SetDataMapSize(dataMapSize)
}

func assembleContent(content []byte, b *bridge.Bridge) error {
	if len(content) > b.DataMap.Cap() {
		return fmt.Errorf("%w: inline content of %d bytes (capacity %d)", ErrTooLarge, len(content), b.DataMap.Cap())
	}
	if err := b.DataMap.Write(0, content); err != nil {
		return err
	}
	return publishScalars(b, 0, len(content))
}

func assembleChunks(ctx context.Context, infos []core.ChunkInfo, src ChunkSource, b *bridge.Bridge) error {
	caps := b.Capacities()

	// 1. 校验块数和序号 (按 Index 排序后必须是 0..n-1)
	if len(infos) > caps.MaxChunks {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyChunks, len(infos), caps.MaxChunks)
	}
	ordered := append([]core.ChunkInfo(nil), infos...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	for pos, info := range ordered {
		if info.Index != pos {
			return fmt.Errorf("%w: expected %d, got %d", ErrChunkIndex, pos, info.Index)
		}
	}

	tableSize := src.AddressTableSize()
	if tableSize > b.DataMap.Cap() {
		return fmt.Errorf("%w: address table of %d bytes (capacity %d)", ErrTooLarge, tableSize, b.DataMap.Cap())
	}

	// 2. 取出所有块并检查总大小
	chunks := make([][]byte, len(ordered))
	total := 0
	for i, info := range ordered {
		data, err := src.Get(ctx, info.Address.Addr)
		if err != nil {
			return fmt.Errorf("failed to fetch chunk %d: %w", info.Index, err)
		}
		if len(data) > caps.ChunkSize {
			return fmt.Errorf("%w: chunk %d is %d bytes (max %d)", ErrTooLarge, info.Index, len(data), caps.ChunkSize)
		}
		chunks[i] = data
		total += len(data)
	}
	if total > b.Chunks.Cap() {
		return fmt.Errorf("%w: %d chunk bytes (capacity %d)", ErrTooLarge, total, b.Chunks.Cap())
	}

	// 3. 写入区域
	cursor := 0
	for i, info := range ordered {
		addr := info.Address.Addr
		if err := b.DataMap.Write(bridge.AddressSize*info.Index, addr[:]); err != nil {
			return err
		}
		if err := b.Chunks.Write(cursor, chunks[i]); err != nil {
			return err
		}
		if err := b.SetChunkSize(info.Index, len(chunks[i])); err != nil {
			return err
		}
		cursor += len(chunks[i])
	}

	return publishScalars(b, len(ordered), tableSize)
}
