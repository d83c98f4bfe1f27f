package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/config"
	"chunkvault/pkg/server"
	"chunkvault/pkg/service"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.cv/config.yaml)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	if *addr != "" {
		viper.Set("server.addr", *addr)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	// 2. Init Core Application
	ctx := context.Background()
	application, err := app.NewApp(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to initialize app: %v", err)
	}
	defer application.Close()

	bridgeSvc, err := service.NewBridgeService(application)
	if err != nil {
		log.Fatalf("❌ Failed to allocate bridge: %v", err)
	}
	slog.Info("chunkvault core initialized",
		slog.Int("chunk_size", application.Capacities.ChunkSize),
		slog.Int("max_chunks", application.Capacities.MaxChunks),
		slog.Bool("catalog", application.Repository != nil),
	)

	// 3. Setup Network
	listenAddr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalf("❌ Failed to listen on %s: %v", listenAddr, err)
	}

	// 4. Setup gRPC Server
	// Input 上限按区域容量放宽，LoadInput 分帧上传不会碰到这个值
	grpcServer := grpc.NewServer(append(server.Options(),
		grpc.MaxRecvMsgSize(64*1024*1024),
	)...)
	cvrpc.RegisterBridgeServer(grpcServer, bridgeSvc)

	// Enable Reflection for debugging tools (grpcurl)
	reflection.Register(grpcServer)

	// 5. Start Server (Async)
	go func() {
		slog.Info("gRPC server listening", slog.String("addr", listenAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("❌ Failed to serve: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	grpcServer.GracefulStop()
	slog.Info("server stopped")
}
