package cvrpc

import (
	"context"

	"google.golang.org/grpc"
)

const BridgeServiceName = "chunkvault.v1.Bridge"

const (
	Bridge_SelfEncrypt_FullMethodName  = "/" + BridgeServiceName + "/SelfEncrypt"
	Bridge_AddressToURL_FullMethodName = "/" + BridgeServiceName + "/AddressToURL"
	Bridge_WriteRegion_FullMethodName  = "/" + BridgeServiceName + "/WriteRegion"
	Bridge_ReadRegion_FullMethodName   = "/" + BridgeServiceName + "/ReadRegion"
	Bridge_ByteForChunk_FullMethodName = "/" + BridgeServiceName + "/ByteForChunk"
	Bridge_Scalars_FullMethodName      = "/" + BridgeServiceName + "/Scalars"
	Bridge_Publish_FullMethodName      = "/" + BridgeServiceName + "/Publish"
	Bridge_LoadInput_FullMethodName    = "/" + BridgeServiceName + "/LoadInput"
	Bridge_Restore_FullMethodName      = "/" + BridgeServiceName + "/Restore"
)

// BridgeServer 是服务端需要实现的接口
type BridgeServer interface {
	SelfEncrypt(context.Context, *SelfEncryptRequest) (*ScalarsResponse, error)
	AddressToURL(context.Context, *Empty) (*AddressToURLResponse, error)
	WriteRegion(context.Context, *WriteRegionRequest) (*Empty, error)
	ReadRegion(context.Context, *ReadRegionRequest) (*ReadRegionResponse, error)
	ByteForChunk(context.Context, *ByteForChunkRequest) (*ByteForChunkResponse, error)
	Scalars(context.Context, *Empty) (*ScalarsResponse, error)
	Publish(context.Context, *PublishRequest) (*PublishResponse, error)
	LoadInput(grpc.ClientStreamingServer[InputFrame, LoadInputResponse]) error
	Restore(*RestoreRequest, grpc.ServerStreamingServer[RestoreFrame]) error
}

// unary 生成一个 MethodDesc：解码请求，经过拦截器，再调用实现
func unary[Req, Resp any](name string, call func(BridgeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BridgeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + BridgeServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BridgeServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func _Bridge_LoadInput_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(BridgeServer).LoadInput(&grpc.GenericServerStream[InputFrame, LoadInputResponse]{ServerStream: stream})
}

func _Bridge_Restore_Handler(srv any, stream grpc.ServerStream) error {
	in := new(RestoreRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BridgeServer).Restore(in, &grpc.GenericServerStream[RestoreRequest, RestoreFrame]{ServerStream: stream})
}

var Bridge_ServiceDesc = grpc.ServiceDesc{
	ServiceName: BridgeServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SelfEncrypt", BridgeServer.SelfEncrypt),
		unary("AddressToURL", BridgeServer.AddressToURL),
		unary("WriteRegion", BridgeServer.WriteRegion),
		unary("ReadRegion", BridgeServer.ReadRegion),
		unary("ByteForChunk", BridgeServer.ByteForChunk),
		unary("Scalars", BridgeServer.Scalars),
		unary("Publish", BridgeServer.Publish),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "LoadInput",
			Handler:       _Bridge_LoadInput_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "Restore",
			Handler:       _Bridge_Restore_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chunkvault/v1/bridge",
}

func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&Bridge_ServiceDesc, srv)
}

// BridgeClient 是客户端存根，所有调用都使用 CBOR 编码
type BridgeClient struct {
	cc grpc.ClientConnInterface
}

func NewBridgeClient(cc grpc.ClientConnInterface) *BridgeClient {
	return &BridgeClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BridgeClient) SelfEncrypt(ctx context.Context, in *SelfEncryptRequest, opts ...grpc.CallOption) (*ScalarsResponse, error) {
	return invoke[ScalarsResponse](ctx, c.cc, Bridge_SelfEncrypt_FullMethodName, in, opts)
}

func (c *BridgeClient) AddressToURL(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*AddressToURLResponse, error) {
	return invoke[AddressToURLResponse](ctx, c.cc, Bridge_AddressToURL_FullMethodName, in, opts)
}

func (c *BridgeClient) WriteRegion(ctx context.Context, in *WriteRegionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, Bridge_WriteRegion_FullMethodName, in, opts)
}

func (c *BridgeClient) ReadRegion(ctx context.Context, in *ReadRegionRequest, opts ...grpc.CallOption) (*ReadRegionResponse, error) {
	return invoke[ReadRegionResponse](ctx, c.cc, Bridge_ReadRegion_FullMethodName, in, opts)
}

func (c *BridgeClient) ByteForChunk(ctx context.Context, in *ByteForChunkRequest, opts ...grpc.CallOption) (*ByteForChunkResponse, error) {
	return invoke[ByteForChunkResponse](ctx, c.cc, Bridge_ByteForChunk_FullMethodName, in, opts)
}

func (c *BridgeClient) Scalars(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ScalarsResponse, error) {
	return invoke[ScalarsResponse](ctx, c.cc, Bridge_Scalars_FullMethodName, in, opts)
}

func (c *BridgeClient) Publish(ctx context.Context, in *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	return invoke[PublishResponse](ctx, c.cc, Bridge_Publish_FullMethodName, in, opts)
}

func (c *BridgeClient) LoadInput(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[InputFrame, LoadInputResponse], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &Bridge_ServiceDesc.Streams[0], Bridge_LoadInput_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[InputFrame, LoadInputResponse]{ClientStream: stream}, nil
}

func (c *BridgeClient) Restore(ctx context.Context, in *RestoreRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[RestoreFrame], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &Bridge_ServiceDesc.Streams[1], Bridge_Restore_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[RestoreRequest, RestoreFrame]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
