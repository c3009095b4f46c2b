// Package grpcapi carries the endpoints API over gRPC. The service exchanges
// google.protobuf.Struct messages, so records keep their JSON shape.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "endpoints.v1.RecordService"

// Full method names.
const (
	MethodGet    = "/" + ServiceName + "/Get"
	MethodInsert = "/" + ServiceName + "/Insert"
	MethodUpdate = "/" + ServiceName + "/Update"
	MethodRemove = "/" + ServiceName + "/Remove"
	MethodList   = "/" + ServiceName + "/List"
)

// RecordServiceServer is the server side of the record service.
type RecordServiceServer interface {
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Remove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(RecordServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecordServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(RecordServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc describes the record service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: handler(MethodGet, RecordServiceServer.Get)},
		{MethodName: "Insert", Handler: handler(MethodInsert, RecordServiceServer.Insert)},
		{MethodName: "Update", Handler: handler(MethodUpdate, RecordServiceServer.Update)},
		{MethodName: "Remove", Handler: handler(MethodRemove, RecordServiceServer.Remove)},
		{MethodName: "List", Handler: handler(MethodList, RecordServiceServer.List)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "endpoints/v1/records.proto",
}
