// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chunkvault/pkg/bridge"
	"chunkvault/pkg/exporter"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/pipeline"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/storage/cache"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/storage/s3"
	"chunkvault/pkg/xorurl"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	// Store 是发布目标 (Sink)，与一次调用内部使用的内存仓库无关
	Store storage.Store

	// Repository 为 nil 表示没有配置运行记录
	Repository *meta.Repository

	Pipeline      *pipeline.Pipeline
	Capacities    bridge.Capacities
	EngineOptions []selfenc.Option
	URLBase       xorurl.Base

	closers []func() error
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	a := &App{}

	// 1. Bridge 容量
	a.Capacities = bridge.Capacities{
		ChunkSize: viper.GetInt("bridge.chunk_size"),
		MaxChunks: viper.GetInt("bridge.max_chunks"),
	}
	if err := a.Capacities.Validate(); err != nil {
		return nil, err
	}

	// 2. 引擎与编码
	engineOpts, err := engineOptions()
	if err != nil {
		return nil, err
	}
	a.EngineOptions = engineOpts

	a.URLBase, err = xorurl.ParseBase(viper.GetString("url.base"))
	if err != nil {
		return nil, err
	}

	a.Pipeline = pipeline.New(
		pipeline.WithEngineOptions(a.EngineOptions...),
		pipeline.WithURLBase(a.URLBase),
		pipeline.WithLogger(slog.Default()),
	)

	// 3. 发布目标
	store, err := initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Store = store
	if c, ok := store.(*cache.ManifestCache); ok {
		a.closers = append(a.closers, c.Close)
	}

	// 4. 运行记录 (可选)
	if driver := viper.GetString("catalog.driver"); driver != "" {
		db, err := meta.NewDB(ctx, meta.Config{
			Driver: driver,
			DSN:    viper.GetString("catalog.dsn"),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init catalog: %w", err)
		}
		a.Repository = meta.NewRepository(db)
		a.closers = append(a.closers, db.Close)
	}

	return a, nil
}

func engineOptions() ([]selfenc.Option, error) {
	ok, level := zstd.EncoderLevelFromString(viper.GetString("engine.compression_level"))
	if !ok {
		return nil, fmt.Errorf("unknown compression level: %q", viper.GetString("engine.compression_level"))
	}
	return []selfenc.Option{
		selfenc.WithChunkSizes(viper.GetInt("engine.min_chunk_size"), viper.GetInt("engine.max_chunk_size")),
		selfenc.WithCompressionLevel(level),
	}, nil
}

// initStore 根据 sink.type 创建发布目标，配置了 redis.url 时外面再包一层缓存
func initStore(ctx context.Context) (storage.Store, error) {
	var backend storage.Store

	switch t := viper.GetString("sink.type"); t {
	case "", "disk":
		path := viper.GetString("sink.path")
		if path == "" {
			return nil, fmt.Errorf("sink path not set")
		}
		d, err := disk.NewAdapter(path)
		if err != nil {
			return nil, err
		}
		backend = d
	case "s3":
		adapter, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          viper.GetString("s3.bucket"),
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
		})
		if err != nil {
			return nil, err
		}
		backend = adapter
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", t)
	}

	redisURL := viper.GetString("redis.url")
	if redisURL == "" {
		return backend, nil
	}
	cached, err := cache.New(backend, cache.Config{
		RedisURL:        redisURL,
		TTL:             viper.GetDuration("redis.ttl"),
		MaxManifestSize: viper.GetInt("redis.max_manifest_size"),
	})
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// NewBridge 按配置的容量分配一个 Bridge
func (a *App) NewBridge() (*bridge.Bridge, error) {
	return bridge.New(a.Capacities)
}

// GetExporter 返回绑定到发布目标的 Exporter
func (a *App) GetExporter() *exporter.Exporter {
	return exporter.NewExporter(a.Store)
}

// Close 释放 Redis 和数据库连接
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
