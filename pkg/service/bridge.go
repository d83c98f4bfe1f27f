package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
	"chunkvault/pkg/app"
	"chunkvault/pkg/bridge"
	"chunkvault/pkg/core"
	"chunkvault/pkg/exporter"
	"chunkvault/pkg/meta"
	"chunkvault/pkg/pipeline"
	"chunkvault/pkg/selfenc"
	"chunkvault/pkg/storage"
	"chunkvault/pkg/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BridgeService 把一个服务端持有的 Bridge 暴露给远端调用方
// 同一时刻只服务一个会话：所有调用共享这一组区域和标量
type BridgeService struct {
	app      *app.App
	bridge   *bridge.Bridge
	exporter *exporter.Exporter

	mu         sync.Mutex
	last       core.DataMap // 最近一次成功加密的结果，Publish 使用
	lastDigest types.Address
	hasLast    bool
}

func NewBridgeService(application *app.App) (*BridgeService, error) {
	b, err := application.NewBridge()
	if err != nil {
		return nil, err
	}
	return &BridgeService{
		app:      application,
		bridge:   b,
		exporter: application.GetExporter(),
	}, nil
}

// =============================================================================
// 1. 入口函数
// =============================================================================

func (s *BridgeService) SelfEncrypt(ctx context.Context, req *cvrpc.SelfEncryptRequest) (*cvrpc.ScalarsResponse, error) {
	// 1. 执行，摘要和加密在同一次持锁内读取输入
	dm, digest, err := s.app.Pipeline.EncryptWithDigest(ctx, s.bridge, req.Length)

	s.mu.Lock()
	if err == nil {
		s.last, s.lastDigest, s.hasLast = dm, digest, true
	} else {
		s.hasLast = false
	}
	s.mu.Unlock()

	// 2. 失败通过 ExitCode 体现，RPC 本身仍然成功
	if err != nil && ctx.Err() != nil {
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	return s.scalars(), nil
}

func (s *BridgeService) AddressToURL(ctx context.Context, _ *cvrpc.Empty) (*cvrpc.AddressToURLResponse, error) {
	n, err := s.app.Pipeline.AddressToURL(s.bridge)
	if err != nil {
		return nil, toStatus(err)
	}

	s.bridge.Lock()
	defer s.bridge.Unlock()
	url, err := s.bridge.EncodedAddressString(n)
	if err != nil {
		return nil, toStatus(err)
	}
	return &cvrpc.AddressToURLResponse{Length: n, URL: url}, nil
}

// =============================================================================
// 2. 区域与标量
// =============================================================================

func (s *BridgeService) region(name string) (*bridge.Region, error) {
	switch name {
	case cvrpc.RegionInput:
		return s.bridge.Input, nil
	case cvrpc.RegionChunks:
		return s.bridge.Chunks, nil
	case cvrpc.RegionDataMap:
		return s.bridge.DataMap, nil
	case cvrpc.RegionAddress:
		return s.bridge.Address, nil
	case cvrpc.RegionEncodedAddress:
		return s.bridge.EncodedAddress, nil
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown region %q", name)
	}
}

func (s *BridgeService) WriteRegion(ctx context.Context, req *cvrpc.WriteRegionRequest) (*cvrpc.Empty, error) {
	r, err := s.region(req.Region)
	if err != nil {
		return nil, err
	}
	s.bridge.Lock()
	defer s.bridge.Unlock()
	if err := r.Write(req.Offset, req.Data); err != nil {
		return nil, toStatus(err)
	}
	return &cvrpc.Empty{}, nil
}

func (s *BridgeService) ReadRegion(ctx context.Context, req *cvrpc.ReadRegionRequest) (*cvrpc.ReadRegionResponse, error) {
	r, err := s.region(req.Region)
	if err != nil {
		return nil, err
	}
	s.bridge.Lock()
	defer s.bridge.Unlock()
	data, err := r.Read(req.Offset, req.Length)
	if err != nil {
		return nil, toStatus(err)
	}
	return &cvrpc.ReadRegionResponse{Data: data}, nil
}

func (s *BridgeService) ByteForChunk(ctx context.Context, req *cvrpc.ByteForChunkRequest) (*cvrpc.ByteForChunkResponse, error) {
	s.bridge.Lock()
	defer s.bridge.Unlock()
	v, err := s.bridge.ByteForChunk(req.Chunk, req.Byte)
	if err != nil {
		return nil, toStatus(err)
	}
	return &cvrpc.ByteForChunkResponse{Value: v}, nil
}

func (s *BridgeService) Scalars(ctx context.Context, _ *cvrpc.Empty) (*cvrpc.ScalarsResponse, error) {
	return s.scalars(), nil
}

func (s *BridgeService) scalars() *cvrpc.ScalarsResponse {
	s.bridge.Lock()
	defer s.bridge.Unlock()

	n := s.bridge.ChunkCount()
	sizes := make([]int, n)
	for i := range sizes {
		// i < ChunkCount <= MaxChunks，不会越界
		sizes[i], _ = s.bridge.ChunkSize(i)
	}
	return &cvrpc.ScalarsResponse{
		ExitCode:    s.bridge.ExitCode(),
		ChunkCount:  n,
		DataMapSize: s.bridge.DataMapSize(),
		ChunkSizes:  sizes,
	}
}

// =============================================================================
// 3. 流式输入输出
// =============================================================================

// LoadInput 把客户端流式上传的字节写进 Input 区域
func (s *BridgeService) LoadInput(stream grpc.ClientStreamingServer[cvrpc.InputFrame, cvrpc.LoadInputResponse]) error {
	limit := int64(s.bridge.Input.Cap())
	data, err := io.ReadAll(io.LimitReader(NewGrpcStreamReader(stream), limit+1))
	if err != nil {
		return status.Errorf(codes.Internal, "receive input: %v", err)
	}
	if int64(len(data)) > limit {
		return status.Errorf(codes.OutOfRange, "input exceeds capacity %d", limit)
	}

	s.bridge.Lock()
	err = s.bridge.LoadInput(data)
	s.bridge.Unlock()
	if err != nil {
		return toStatus(err)
	}
	return stream.SendAndClose(&cvrpc.LoadInputResponse{Length: len(data)})
}

// Publish 把最近一次加密结果写到发布目标，并在有目录时记一条运行记录
func (s *BridgeService) Publish(ctx context.Context, req *cvrpc.PublishRequest) (*cvrpc.PublishResponse, error) {
	s.mu.Lock()
	dm, digest, ok := s.last, s.lastDigest, s.hasLast
	s.mu.Unlock()
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "no successful self-encrypt to publish")
	}

	// 1. 上传 Chunk 与清单
	manifest, err := s.exporter.Publish(ctx, s.bridge, dm)
	if err != nil {
		return nil, toStatus(err)
	}

	// 2. 记录
	if repo := s.app.Repository; repo != nil {
		s.bridge.Lock()
		chunkCount, dataMapSize := s.bridge.ChunkCount(), s.bridge.DataMapSize()
		s.bridge.Unlock()

		_, err := repo.RecordRun(ctx, meta.Run{
			InputDigest:     digest,
			InputSize:       int64(dm.Len()),
			Kind:            dm.Kind.String(),
			ChunkCount:      chunkCount,
			DataMapSize:     dataMapSize,
			ManifestAddress: manifest,
			Addresses:       dm.Addresses(),
		})
		if err != nil {
			return nil, status.Errorf(codes.Internal, "record run: %v", err)
		}
		if req.Label != "" {
			if err := repo.SetLabel(ctx, req.Label, manifest); err != nil {
				return nil, toStatus(err)
			}
		}
	} else if req.Label != "" {
		return nil, status.Error(codes.FailedPrecondition, "labels need a catalog")
	}

	slog.Info("published",
		slog.String("manifest", manifest.String()),
		slog.String("label", req.Label),
	)
	return &cvrpc.PublishResponse{ManifestAddress: manifest.String()}, nil
}

// Restore 按清单地址 (或标签) 解密，明文分帧流回客户端
func (s *BridgeService) Restore(req *cvrpc.RestoreRequest, stream grpc.ServerStreamingServer[cvrpc.RestoreFrame]) error {
	ctx := stream.Context()

	addr, err := s.resolve(ctx, req.ManifestAddress)
	if err != nil {
		return err
	}
	if err := s.exporter.Restore(ctx, addr, NewGrpcStreamWriter(stream), s.app.EngineOptions...); err != nil {
		return toStatus(err)
	}
	return nil
}

// resolve 先按 Hex 地址解析，失败再当作标签名查目录
func (s *BridgeService) resolve(ctx context.Context, ref string) (types.Address, error) {
	if addr, err := types.ParseAddress(ref); err == nil {
		return addr, nil
	}
	if s.app.Repository == nil {
		return types.Address{}, status.Errorf(codes.InvalidArgument, "invalid manifest address %q", ref)
	}
	label, err := s.app.Repository.GetLabel(ctx, ref)
	if err != nil {
		return types.Address{}, toStatus(err)
	}
	addr, err := types.ParseAddress(label.ManifestAddress)
	if err != nil {
		return types.Address{}, status.Errorf(codes.DataLoss, "label %q: %v", ref, err)
	}
	return addr, nil
}

// toStatus 把领域错误映射成 gRPC 状态码
func toStatus(err error) error {
	switch {
	case errors.Is(err, bridge.ErrOutOfRange):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, types.ErrInvalidAddress):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, meta.ErrLabelNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, exporter.ErrBridgeMismatch), errors.Is(err, meta.ErrConcurrentUpdate):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, selfenc.ErrCorrupted), errors.Is(err, core.ErrNotManifest):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, pipeline.ErrLengthExceeded):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, fmt.Sprint(err))
	}
}
