package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"chunkvault/pkg/core"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxManifestSize 是放进 Redis 的清单正文上限
// 清单只含地址和长度，远小于这个值；Chunk 正文从不缓存
const DefaultMaxManifestSize = 64 * 1024

const (
	seenPrefix     = "cv:seen:"
	manifestPrefix = "cv:manifest:"
)

// ManifestCache 包装一个 Sink:
//   - 所有已发布对象在 Redis 里留一个存在标记，重复发布不再访问 Sink
//   - 清单正文整体缓存，restore / inspect 解析引用时不必每次下载
//
// Redis 不可用时退化为直接访问 Sink。
type ManifestCache struct {
	sink    storage.Store
	client  *redis.Client
	ttl     time.Duration
	maxBody int
}

type Config struct {
	RedisURL        string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL             time.Duration // 0 表示不过期
	MaxManifestSize int           // <= 0 时使用 DefaultMaxManifestSize
}

// New 连接 Redis 并包装 sink，连不上直接报错
func New(sink storage.Store, cfg Config) (*ManifestCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newWithClient(sink, client, cfg), nil
}

func newWithClient(sink storage.Store, client *redis.Client, cfg Config) *ManifestCache {
	maxBody := cfg.MaxManifestSize
	if maxBody <= 0 {
		maxBody = DefaultMaxManifestSize
	}
	return &ManifestCache{sink: sink, client: client, ttl: cfg.TTL, maxBody: maxBody}
}

func seenKey(addr types.Address) string     { return seenPrefix + addr.String() }
func manifestKey(addr types.Address) string { return manifestPrefix + addr.String() }

// Has 先看 Redis 里的标记或清单正文，未命中再问 Sink
func (c *ManifestCache) Has(ctx context.Context, addr types.Address) (bool, error) {
	n, err := c.client.Exists(ctx, seenKey(addr), manifestKey(addr)).Result()
	switch {
	case err != nil:
		c.degraded("exists", addr, err)
	case n > 0:
		return true, nil
	}

	found, err := c.sink.Has(ctx, addr)
	if err != nil {
		return false, err
	}
	if found {
		c.mark(ctx, addr)
	}
	return found, nil
}

// Put 写穿到 Sink；清单额外缓存正文
func (c *ManifestCache) Put(ctx context.Context, obj core.Object) error {
	addr := obj.ID()
	exists, err := c.Has(ctx, addr)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := c.sink.Put(ctx, obj); err != nil {
		return err
	}

	if obj.Type() == core.TypeManifest && len(obj.Bytes()) <= c.maxBody {
		c.remember(ctx, addr, obj.Bytes())
		return nil
	}
	c.mark(ctx, addr)
	return nil
}

// Get 命中清单缓存时直接返回正文
// 未命中时读 Sink，若读到的是清单就顺手缓存
func (c *ManifestCache) Get(ctx context.Context, addr types.Address) (io.ReadCloser, error) {
	body, err := c.client.Get(ctx, manifestKey(addr)).Bytes()
	switch {
	case err == nil:
		return io.NopCloser(bytes.NewReader(body)), nil
	case !errors.Is(err, redis.Nil):
		c.degraded("get", addr, err)
	}

	rc, err := c.sink.Get(ctx, addr)
	if err != nil {
		return nil, err
	}

	// 只预读 maxBody+1 字节，超出的一定不是清单，剩下的原样交给调用方
	head, err := io.ReadAll(io.LimitReader(rc, int64(c.maxBody)+1))
	if err != nil {
		rc.Close()
		return nil, err
	}
	if len(head) > c.maxBody {
		return &prefixedReadCloser{Reader: io.MultiReader(bytes.NewReader(head), rc), Closer: rc}, nil
	}
	rc.Close()

	if isManifest(addr, head) {
		c.remember(ctx, addr, head)
	}
	return io.NopCloser(bytes.NewReader(head)), nil
}

// ExpandHash 短前缀只能由 Sink 回答
func (c *ManifestCache) ExpandHash(ctx context.Context, short types.AddressPrefix) (types.Address, error) {
	return c.sink.ExpandHash(ctx, short)
}

func (c *ManifestCache) Close() error {
	return c.client.Close()
}

// isManifest 校验地址与正文一致，并且正文能解成清单
func isManifest(addr types.Address, body []byte) bool {
	if core.CalculateAddress(body) != addr {
		return false
	}
	_, err := core.DecodeManifest(body)
	return err == nil
}

func (c *ManifestCache) mark(ctx context.Context, addr types.Address) {
	if err := c.client.Set(ctx, seenKey(addr), "1", c.ttl).Err(); err != nil {
		c.degraded("mark", addr, err)
	}
}

func (c *ManifestCache) remember(ctx context.Context, addr types.Address, body []byte) {
	if err := c.client.Set(ctx, manifestKey(addr), body, c.ttl).Err(); err != nil {
		c.degraded("remember", addr, err)
	}
}

func (c *ManifestCache) degraded(op string, addr types.Address, err error) {
	slog.Warn("redis unavailable, using sink directly",
		slog.String("op", op),
		slog.String("addr", addr.String()),
		slog.String("err", err.Error()),
	)
}

type prefixedReadCloser struct {
	io.Reader
	io.Closer
}
