package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"path/filepath"
	"testing"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/bridge"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/pipeline"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/server"
	"chunkvault/pkg/storage/disk"
	"chunkvault/pkg/xorurl"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testCaps 让 1KiB 的 Chunk 加上模式字节和填充后刚好放得下
var testCaps = bridge.Capacities{ChunkSize: 1040, MaxChunks: 16}

// setupTestApp 是所有 Service 测试共享的基础设施初始化逻辑
// withCatalog 为 false 时不挂运行记录
func setupTestApp(t *testing.T, withCatalog bool) *app.App {
	t.Helper()
	tmpDir := t.TempDir()

	// 1. Store
	store, err := disk.NewAdapter(filepath.Join(tmpDir, "objects"))
	require.NoError(t, err)

	// 2. Engine
	engineOpts := []selfenc.Option{selfenc.WithChunkSizes(256, 1024)}
	a := &app.App{
		Store:         store,
		Capacities:    testCaps,
		EngineOptions: engineOpts,
		URLBase:       xorurl.Base32z,
		Pipeline: pipeline.New(
			pipeline.WithEngineOptions(engineOpts...),
			pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
	}

	// 3. DB & Meta
	if withCatalog {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)

		metaDB := meta.NewWithConn(db)
		require.NoError(t, metaDB.AutoMigrate(&meta.RunRecord{}, &meta.Label{}))
		t.Cleanup(func() { _ = metaDB.Close() })
		a.Repository = meta.NewRepository(metaDB)
	}
	return a
}

// startServer 在 bufconn 上启动带拦截器的服务端，返回客户端
func startServer(t *testing.T, a *app.App) *cvrpc.BridgeClient {
	t.Helper()

	svc, err := NewBridgeService(a)
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(server.Options()...)
	cvrpc.RegisterBridgeServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return cvrpc.NewBridgeClient(conn)
}

func randomInput(n int, seed int64) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

// uploadInput 以 frame 字节为一帧把数据推进 Input 区域
func uploadInput(t *testing.T, c *cvrpc.BridgeClient, data []byte, frame int) *cvrpc.LoadInputResponse {
	t.Helper()
	stream, err := c.LoadInput(context.Background())
	require.NoError(t, err)
	for off := 0; off < len(data); off += frame {
		end := min(off+frame, len(data))
		require.NoError(t, stream.Send(&cvrpc.InputFrame{Data: data[off:end]}))
	}
	resp, err := stream.CloseAndRecv()
	require.NoError(t, err)
	return resp
}

// restoreAll 读完整个 Restore 流
func restoreAll(ctx context.Context, c *cvrpc.BridgeClient, ref string) ([]byte, error) {
	stream, err := c.Restore(ctx, &cvrpc.RestoreRequest{ManifestAddress: ref})
	if err != nil {
		return nil, err
	}
	var out []byte
	for {
		frame, err := stream.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, frame.Data...)
	}
}
