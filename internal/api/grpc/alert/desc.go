package alert

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sos.v1.AlertService"

// Full method names.
const (
	GetAlertStateMethod = "/" + ServiceName + "/GetAlertState"
	CancelAlertMethod   = "/" + ServiceName + "/CancelAlert"
	RaiseAlertMethod    = "/" + ServiceName + "/RaiseAlert"
	WatchMethod         = "/" + ServiceName + "/Watch"
)

// ActorMetadataKey carries the "user@host" of the caller. It is logged, not trusted.
const ActorMetadataKey = "x-sos-actor"

// AlertServiceServer is the server API of the alert service.
type AlertServiceServer interface {
	GetAlertState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	CancelAlert(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	RaiseAlert(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Watch(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// AlertServiceClient is the client API of the alert service.
type AlertServiceClient interface {
	GetAlertState(ctx context.Context, req *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	CancelAlert(ctx context.Context, req *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	RaiseAlert(ctx context.Context, req *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(
		ctx context.Context,
		req *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

// ServiceDesc describes AlertService for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlertServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAlertState", Handler: getAlertStateHandler},
		{MethodName: "CancelAlert", Handler: cancelAlertHandler},
		{MethodName: "RaiseAlert", Handler: raiseAlertHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "sos/v1/alert.proto",
}

// RegisterAlertServiceServer registers srv on s.
func RegisterAlertServiceServer(s grpc.ServiceRegistrar, srv AlertServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getAlertStateHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AlertServiceServer).GetAlertState(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAlertStateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlertServiceServer).GetAlertState(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func cancelAlertHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AlertServiceServer).CancelAlert(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CancelAlertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlertServiceServer).CancelAlert(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func raiseAlertHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(AlertServiceServer).RaiseAlert(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RaiseAlertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlertServiceServer).RaiseAlert(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(AlertServiceServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{
		ServerStream: stream,
	})
}

type alertServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlertServiceClient returns a client stub bound to cc.
func NewAlertServiceClient(cc grpc.ClientConnInterface) AlertServiceClient {
	return &alertServiceClient{cc: cc}
}

func (c *alertServiceClient) GetAlertState(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetAlertStateMethod, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alertServiceClient) CancelAlert(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CancelAlertMethod, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alertServiceClient) RaiseAlert(
	ctx context.Context,
	req *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RaiseAlertMethod, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *alertServiceClient) Watch(
	ctx context.Context,
	req *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}

	if err := x.SendMsg(req); err != nil {
		return nil, err
	}

	if err := x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
