// Package control defines the TrafficControl gRPC service used by operator
// clients and the visualization server. Messages are protobuf well-known
// types: snapshots, metrics and command batches travel as structpb.Struct
// holding the JSON form of the shared package types.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "speakcity.control.TrafficControl"

const (
	GetSnapshotMethod     = "/" + ServiceName + "/GetSnapshot"
	GetMetricsMethod      = "/" + ServiceName + "/GetMetrics"
	ExecuteCommandsMethod = "/" + ServiceName + "/ExecuteCommands"
	ExecuteCommandMethod  = "/" + ServiceName + "/ExecuteCommand"
	HealthCheckMethod     = "/" + ServiceName + "/HealthCheck"
)

// TrafficControlServer is the server API for the TrafficControl service.
type TrafficControlServer interface {
	// GetSnapshot returns the latest frame as a shared.Snapshot struct.
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetMetrics returns the dashboard counters as a shared.Metrics struct.
	GetMetrics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// ExecuteCommands runs a shared.CommandBatch and returns a
	// shared.CommandResponse. Individual command failures are reported in
	// the results, not as an RPC error.
	ExecuteCommands(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ExecuteCommand runs a single shared.Command and fails the RPC with
	// NotFound or InvalidArgument when the command is rejected.
	ExecuteCommand(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// UnimplementedTrafficControlServer can be embedded to have forward
// compatible implementations.
type UnimplementedTrafficControlServer struct{}

func (UnimplementedTrafficControlServer) GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSnapshot not implemented")
}
func (UnimplementedTrafficControlServer) GetMetrics(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMetrics not implemented")
}
func (UnimplementedTrafficControlServer) ExecuteCommands(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ExecuteCommands not implemented")
}
func (UnimplementedTrafficControlServer) ExecuteCommand(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ExecuteCommand not implemented")
}
func (UnimplementedTrafficControlServer) HealthCheck(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method HealthCheck not implemented")
}

// RegisterTrafficControlServer attaches srv to s.
func RegisterTrafficControlServer(s grpc.ServiceRegistrar, srv TrafficControlServer) {
	s.RegisterService(&TrafficControlServiceDesc, srv)
}

func getSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficControlServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrafficControlServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getMetricsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficControlServer).GetMetrics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMetricsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrafficControlServer).GetMetrics(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func executeCommandsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficControlServer).ExecuteCommands(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExecuteCommandsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrafficControlServer).ExecuteCommands(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func executeCommandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficControlServer).ExecuteCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExecuteCommandMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrafficControlServer).ExecuteCommand(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func healthCheckHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrafficControlServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: HealthCheckMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TrafficControlServer).HealthCheck(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// TrafficControlServiceDesc is the grpc.ServiceDesc for the TrafficControl
// service.
var TrafficControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrafficControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "GetMetrics", Handler: getMetricsHandler},
		{MethodName: "ExecuteCommands", Handler: executeCommandsHandler},
		{MethodName: "ExecuteCommand", Handler: executeCommandHandler},
		{MethodName: "HealthCheck", Handler: healthCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "speakcity/control.proto",
}
