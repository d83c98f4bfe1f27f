package service

import (
	"fmt"

	cvrpc "chunkvault/pkg/api/cvrpc/v1"
)

// StreamFrameSize 是 Restore 流单帧的最大明文长度
const StreamFrameSize = 64 * 1024

// =============================================================================
// 1. Upload Adapter: gRPC Stream -> io.Reader
// =============================================================================

// InputStream 定义了 LoadInput 所需的最小集合，方便测试 Mock
type InputStream interface {
	Recv() (*cvrpc.InputFrame, error)
}

// GrpcStreamReader 将 LoadInput 流包装为 io.Reader
type GrpcStreamReader struct {
	stream      InputStream
	internalBuf []byte // 从 Recv 拿到、还没被 Read 读走的数据
	err         error  // 流的终止状态 (如 EOF)
}

func NewGrpcStreamReader(stream InputStream) *GrpcStreamReader {
	return &GrpcStreamReader{stream: stream}
}

// Read 实现了 io.Reader 接口
// 空帧直接跳过，继续拉下一帧
func (r *GrpcStreamReader) Read(p []byte) (int, error) {
	for len(r.internalBuf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		frame, err := r.stream.Recv()
		if err != nil {
			r.err = err
			return 0, err
		}
		r.internalBuf = frame.Data
	}

	copied := copy(p, r.internalBuf)
	r.internalBuf = r.internalBuf[copied:]
	return copied, nil
}

// =============================================================================
// 2. Download Adapter: io.Writer -> gRPC Stream
// =============================================================================

// RestoreStream 定义了 Restore 所需的最小集合
type RestoreStream interface {
	Send(*cvrpc.RestoreFrame) error
}

// GrpcStreamWriter 将 Restore 流包装为 io.Writer
// 大块写入会被切成不超过 StreamFrameSize 的多帧
type GrpcStreamWriter struct {
	stream RestoreStream
}

func NewGrpcStreamWriter(stream RestoreStream) *GrpcStreamWriter {
	return &GrpcStreamWriter{stream: stream}
}

func (w *GrpcStreamWriter) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		end := min(written+StreamFrameSize, len(p))
		if err := w.stream.Send(&cvrpc.RestoreFrame{Data: p[written:end]}); err != nil {
			return written, fmt.Errorf("grpc send failed: %w", err)
		}
		written = end
	}
	return written, nil
}
