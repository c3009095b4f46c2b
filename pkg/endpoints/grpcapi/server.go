package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nimburion/endpointstore/pkg/endpoints"
)

// Server exposes an endpoints.API as a RecordServiceServer.
type Server struct {
	api endpoints.API
}

var _ RecordServiceServer = (*Server)(nil)

// NewServer wraps api.
func NewServer(api endpoints.API) *Server {
	return &Server{api: api}
}

// RegisterServer registers api on s.
func RegisterServer(s grpc.ServiceRegistrar, api endpoints.API) {
	s.RegisterService(&ServiceDesc, NewServer(api))
}

// Get serves RecordService.Get.
func (s *Server) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.serve(ctx, s.api.Get(ctx, endpoints.Params(in.AsMap())))
}

// Insert serves RecordService.Insert.
func (s *Server) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.serve(ctx, s.api.Insert(ctx, in.AsMap()))
}

// Update serves RecordService.Update.
func (s *Server) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.serve(ctx, s.api.Update(ctx, in.AsMap()))
}

// Remove serves RecordService.Remove.
func (s *Server) Remove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.serve(ctx, s.api.Remove(ctx, endpoints.Params(in.AsMap())))
}

// List serves RecordService.List.
func (s *Server) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	params := endpoints.ListParams{
		Offset: int(fields["offset"].GetNumberValue()),
		Limit:  int(fields["limit"].GetNumberValue()),
		Order:  fields["order"].GetStringValue(),
	}
	if params.Offset < 0 || params.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "offset and limit must not be negative")
	}
	return s.serve(ctx, s.api.List(ctx, params))
}

func (s *Server) serve(ctx context.Context, req endpoints.Request) (*structpb.Struct, error) {
	done := make(chan endpoints.Response, 1)
	req.Execute(func(resp endpoints.Response) {
		select {
		case done <- resp:
		default:
		}
	})

	select {
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	case resp := <-done:
		if resp.Error != nil {
			return nil, ToStatus(resp.Error)
		}
		payload := normalize(resp.Payload())
		obj, ok := payload.(map[string]any)
		if !ok {
			obj = map[string]any{"result": payload}
		}
		out, err := newStruct(obj)
		if err != nil {
			return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
		}
		return out, nil
	}
}
