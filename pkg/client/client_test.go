package client

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// echoServer 只实现流式接口：LoadInput 收下数据，Restore 原样吐回
type echoServer struct {
	cvrpc.BridgeServer
	stored []byte
	limit  int
}

func (s *echoServer) LoadInput(stream grpc.ClientStreamingServer[cvrpc.InputFrame, cvrpc.LoadInputResponse]) error {
	var buf bytes.Buffer
	for {
		frame, err := stream.Recv()
		if err != nil {
			break
		}
		buf.Write(frame.Data)
		if buf.Len() > s.limit {
			return status.Error(codes.OutOfRange, "too large")
		}
	}
	s.stored = buf.Bytes()
	return stream.SendAndClose(&cvrpc.LoadInputResponse{Length: buf.Len()})
}

func (s *echoServer) Restore(req *cvrpc.RestoreRequest, stream grpc.ServerStreamingServer[cvrpc.RestoreFrame]) error {
	if req.ManifestAddress != "latest" {
		return status.Error(codes.NotFound, "no such label")
	}
	for off := 0; off < len(s.stored); off += 1000 {
		end := min(off+1000, len(s.stored))
		if err := stream.Send(&cvrpc.RestoreFrame{Data: s.stored[off:end]}); err != nil {
			return err
		}
	}
	return nil
}

func setupClient(t *testing.T, srv *echoServer) *CVClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	cvrpc.RegisterBridgeServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := NewWithConn(conn)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUploadDownload(t *testing.T) {
	srv := &echoServer{limit: 4 * UploadFrameSize}
	c := setupClient(t, srv)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("chunkvault"), UploadFrameSize/5)
	n, err := c.Upload(ctx, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, srv.stored)

	var out bytes.Buffer
	total, err := c.Download(ctx, "latest", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), total)
	assert.Equal(t, payload, out.Bytes())
}

func TestUpload_Empty(t *testing.T) {
	c := setupClient(t, &echoServer{limit: 10})
	n, err := c.Upload(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpload_Rejected(t *testing.T) {
	c := setupClient(t, &echoServer{limit: 10})
	_, err := c.Upload(context.Background(), bytes.NewReader(make([]byte, 3*UploadFrameSize)))
	assert.Equal(t, codes.OutOfRange, status.Code(err))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestUpload_ReaderError(t *testing.T) {
	c := setupClient(t, &echoServer{limit: 10})
	_, err := c.Upload(context.Background(), brokenReader{})
	assert.ErrorContains(t, err, "disk on fire")
}

func TestDownload_NotFound(t *testing.T) {
	c := setupClient(t, &echoServer{})
	_, err := c.Download(context.Background(), "nope", &bytes.Buffer{})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestNewCVClient(t *testing.T) {
	c, err := NewCVClient("localhost:0")
	require.NoError(t, err)
	assert.NotNil(t, c.Bridge)
	assert.NoError(t, c.Close())
}
