package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "hsucompose.UnitService"

// UnitServiceServer is the server API of hsucompose.UnitService.
// Messages are protobuf well-known types so the service needs no generated code.
type UnitServiceServer interface {
	Status(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Select(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Refresh(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
	Start(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Stop(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Restart(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Down(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Rebuild(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Remove(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error)
	Exec(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error)
	Logs(ctx context.Context, in *structpb.Struct) (*wrapperspb.StringValue, error)
	SetMode(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error)
}

var unitServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*UnitServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Status", UnitServiceServer.Status),
		unaryMethod("Select", UnitServiceServer.Select),
		unaryMethod("Refresh", UnitServiceServer.Refresh),
		unaryMethod("Start", UnitServiceServer.Start),
		unaryMethod("Stop", UnitServiceServer.Stop),
		unaryMethod("Restart", UnitServiceServer.Restart),
		unaryMethod("Down", UnitServiceServer.Down),
		unaryMethod("Rebuild", UnitServiceServer.Rebuild),
		unaryMethod("Remove", UnitServiceServer.Remove),
		unaryMethod("Exec", UnitServiceServer.Exec),
		unaryMethod("Logs", UnitServiceServer.Logs),
		unaryMethod("SetMode", UnitServiceServer.SetMode),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hsucompose/unit_service.proto",
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unaryMethod[Req any, Resp any](name string, call func(UnitServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(UnitServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
