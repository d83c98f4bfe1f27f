package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// UploadFrameSize 是 LoadInput 每帧的大小
const UploadFrameSize = 256 * 1024

// CVClient 封装了与 cv-server 的连接
type CVClient struct {
	conn *grpc.ClientConn

	Bridge *cvrpc.BridgeClient
}

// NewCVClient 创建客户端
// grpc.NewClient 立即返回，连接在后台建立，网络不通不会在这里报错
func NewCVClient(addr string) (*CVClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(64*1024*1024),
			grpc.MaxCallSendMsgSize(64*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	return NewWithConn(conn), nil
}

// NewWithConn 包装一个已有连接，测试里用 bufconn
func NewWithConn(conn *grpc.ClientConn) *CVClient {
	return &CVClient{
		conn:   conn,
		Bridge: cvrpc.NewBridgeClient(conn),
	}
}

// Upload 把 r 的全部内容分帧写进远端 Input 区域，返回写入的长度
func (c *CVClient) Upload(ctx context.Context, r io.Reader) (int, error) {
	stream, err := c.Bridge.LoadInput(ctx)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, UploadFrameSize)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if err := stream.Send(&cvrpc.InputFrame{Data: buf[:n]}); err != nil {
				// 服务端提前结束，真正的原因在 CloseAndRecv 里
				break
			}
		}
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			break
		}
		if rerr != nil {
			return 0, rerr
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return 0, err
	}
	return resp.Length, nil
}

// Download 把 Restore 流写进 w
func (c *CVClient) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	stream, err := c.Bridge.Restore(ctx, &cvrpc.RestoreRequest{ManifestAddress: ref})
	if err != nil {
		return 0, err
	}

	var total int64
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(frame.Data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

// Close 关闭底层连接
func (c *CVClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
