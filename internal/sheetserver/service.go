// Package sheetserver exposes the recompute engine as the gRPC
// SheetService. Requests and responses are google.protobuf.Struct values.
package sheetserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "d20sheet.v1.SheetService"

// Full method names.
const (
	RecomputeMethod = "/" + ServiceName + "/Recompute"
	EvaluateMethod  = "/" + ServiceName + "/Evaluate"
	ImportMethod    = "/" + ServiceName + "/Import"
	RollMethod      = "/" + ServiceName + "/Roll"
)

// SheetServiceServer is the server API for SheetService.
type SheetServiceServer interface {
	// Recompute runs a pass for {"id"} and returns the computed values.
	Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Evaluate evaluates {"formula"} against {"data"}.
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Import stores the YAML character document in {"yaml"}.
	Import(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Roll rolls the dice expression in {"dice"}.
	Roll(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedSheetServiceServer can be embedded for forward compatibility.
type UnimplementedSheetServiceServer struct{}

func (UnimplementedSheetServiceServer) Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Recompute not implemented")
}

func (UnimplementedSheetServiceServer) Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Evaluate not implemented")
}

func (UnimplementedSheetServiceServer) Import(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Import not implemented")
}

func (UnimplementedSheetServiceServer) Roll(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Roll not implemented")
}

// RegisterSheetServiceServer registers srv on s.
func RegisterSheetServiceServer(s grpc.ServiceRegistrar, srv SheetServiceServer) {
	s.RegisterService(&SheetService_ServiceDesc, srv)
}

func unaryHandler(method string, call func(SheetServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SheetServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SheetServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SheetService_ServiceDesc is the grpc.ServiceDesc for SheetService.
var SheetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SheetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recompute", Handler: unaryHandler(RecomputeMethod, SheetServiceServer.Recompute)},
		{MethodName: "Evaluate", Handler: unaryHandler(EvaluateMethod, SheetServiceServer.Evaluate)},
		{MethodName: "Import", Handler: unaryHandler(ImportMethod, SheetServiceServer.Import)},
		{MethodName: "Roll", Handler: unaryHandler(RollMethod, SheetServiceServer.Roll)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "d20sheet/v1/sheet.proto",
}

// SheetServiceClient is the client API for SheetService.
type SheetServiceClient interface {
	Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Import(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Roll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type sheetServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSheetServiceClient creates a client on cc.
func NewSheetServiceClient(cc grpc.ClientConnInterface) SheetServiceClient {
	return &sheetServiceClient{cc: cc}
}

func (c *sheetServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sheetServiceClient) Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecomputeMethod, in, opts)
}

func (c *sheetServiceClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, EvaluateMethod, in, opts)
}

func (c *sheetServiceClient) Import(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ImportMethod, in, opts)
}

func (c *sheetServiceClient) Roll(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RollMethod, in, opts)
}
