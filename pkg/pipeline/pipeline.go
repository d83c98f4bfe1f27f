// Package pipeline 是跨边界调用的入口：
// 从 Bridge 读输入，驱动自加密引擎，再把结果装配回 Bridge。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chunkvault/pkg/assembler"
	"chunkvault/pkg/bridge"
	"chunkvault/pkg/core"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/storage/memory"
	"chunkvault/pkg/types"
	"chunkvault/pkg/xorurl"
)

// ExitCode 写进 Bridge 的 ExitCode 槽位
type ExitCode byte

const (
	ExitOK             ExitCode = 0
	ExitLengthExceeded ExitCode = 1
	ExitFailure        ExitCode = 2
)

var (
	ErrLengthExceeded = errors.New("input length exceeds bridge capacity")
	ErrEngine         = errors.New("self-encryption failed")
	ErrLookup         = errors.New("chunk lookup failed")
	ErrAssembly       = errors.New("data map assembly failed")
)

// Pipeline 持有引擎和地址编码的配置，本身无状态，可以被多个 Bridge 共用
type Pipeline struct {
	engineOpts []selfenc.Option
	base       xorurl.Base
	logger     *slog.Logger
}

type Option func(*Pipeline)

func WithEngineOptions(opts ...selfenc.Option) Option {
	return func(p *Pipeline) { p.engineOpts = append(p.engineOpts, opts...) }
}

func WithURLBase(base xorurl.Base) Option {
	return func(p *Pipeline) { p.base = base }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		base:   xorurl.Base32z,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SelfEncrypt 加密 Input 区域的前 length 个字节，结果通过 Bridge 读取
func (p *Pipeline) SelfEncrypt(ctx context.Context, b *bridge.Bridge, length int) error {
	_, err := p.Encrypt(ctx, b, length)
	return err
}

// Encrypt 与 SelfEncrypt 相同，额外返回完整的 DataMap (含明文哈希，解密时需要)
func (p *Pipeline) Encrypt(ctx context.Context, b *bridge.Bridge, length int) (core.DataMap, error) {
	dm, _, err := p.EncryptWithDigest(ctx, b, length)
	return dm, err
}

// EncryptWithDigest 在同一次持锁内同时返回被加密输入的哈希
// 调用方拿到的哈希一定对应这次加密读到的字节
func (p *Pipeline) EncryptWithDigest(ctx context.Context, b *bridge.Bridge, length int) (core.DataMap, types.Address, error) {
	b.Lock()
	defer b.Unlock()

	start := time.Now()

	// 1. 重置状态码
	b.SetExitCode(byte(ExitOK))

	// 2. 长度校验，失败时不碰任何别的东西
	if length < 0 || length > b.Input.Cap() {
		b.SetExitCode(byte(ExitLengthExceeded))
		p.logger.Warn("self-encrypt rejected",
			slog.Int("length", length),
			slog.Int("capacity", b.Input.Cap()),
		)
		return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %d > %d", ErrLengthExceeded, length, b.Input.Cap())
	}

	dm, digest, err := p.run(ctx, b, length)
	if err != nil {
		b.SetExitCode(byte(ExitFailure))
		p.logger.Error("self-encrypt failed",
			slog.Int("length", length),
			slog.String("err", err.Error()),
		)
		return core.DataMap{}, types.Address{}, err
	}

	p.logger.Info("self-encrypt finished",
		slog.Int("length", length),
		slog.String("kind", dm.Kind.String()),
		slog.Int("chunks", b.ChunkCount()),
		slog.Int("datamap_size", b.DataMapSize()),
		slog.Duration("dur", time.Since(start)),
	)
	return dm, digest, nil
}

func (p *Pipeline) run(ctx context.Context, b *bridge.Bridge, length int) (core.DataMap, types.Address, error) {
	// 3. 拷贝输入
	buf, err := b.Input.Read(0, length)
	if err != nil {
		return core.DataMap{}, types.Address{}, err
	}
	digest := core.CalculateAddress(buf)

	// 4. 每次调用一个全新的仓库，容量不超过 Bridge
	caps := b.Capacities()
	store := memory.New(memory.WithLimits(caps.MaxChunks, b.Chunks.Cap()))
	enc, err := selfenc.New(ctx, store, core.NoneDataMap(), p.engineOpts...)
	if err != nil {
		return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	// 5. 驱动引擎
	if err := enc.Write(ctx, buf, 0); err != nil {
		return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	dm, _, err := enc.Close(ctx)
	if err != nil {
		return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	// 6. 装配
	if err := assembler.Assemble(ctx, dm, store, b); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %w", ErrLookup, err)
		}
		return core.DataMap{}, types.Address{}, fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	return dm, digest, nil
}

// AddressToURL 把 Address 槽位中的地址编码后写进 EncodedAddress 槽位，返回有效长度
func (p *Pipeline) AddressToURL(b *bridge.Bridge) (int, error) {
	b.Lock()
	defer b.Unlock()

	addr, err := b.AddressValue()
	if err != nil {
		return 0, err
	}
	url, err := xorurl.Encode(addr, p.base)
	if err != nil {
		return 0, err
	}
	if len(url) > b.EncodedAddress.Cap() {
		return 0, fmt.Errorf("%w: encoded address of %d bytes (capacity %d)", bridge.ErrOutOfRange, len(url), b.EncodedAddress.Cap())
	}
	if err := b.EncodedAddress.Write(0, []byte(url)); err != nil {
		return 0, err
	}
	return len(url), nil
}

var defaultPipeline = New()

// SelfEncrypt 使用默认配置
func SelfEncrypt(ctx context.Context, b *bridge.Bridge, length int) error {
	return defaultPipeline.SelfEncrypt(ctx, b, length)
}

// AddressToURL 使用默认的 Base32z 编码
func AddressToURL(b *bridge.Bridge) (int, error) {
	return defaultPipeline.AddressToURL(b)
}
