package main

import (
	"context"

	"speakcity/control"
	"speakcity/shared"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCControlServer implements control.TrafficControlServer on top of the
// simulation core.
type GRPCControlServer struct {
	control.UnimplementedTrafficControlServer

	core *SimulationCore
}

// NewGRPCControlServer creates a new gRPC control server
func NewGRPCControlServer(core *SimulationCore) *GRPCControlServer {
	return &GRPCControlServer{core: core}
}

// GetSnapshot implements the GetSnapshot RPC
func (s *GRPCControlServer) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := control.Encode(s.core.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// GetMetrics implements the GetMetrics RPC
func (s *GRPCControlServer) GetMetrics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := control.Encode(s.core.Metrics())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// ExecuteCommands implements the ExecuteCommands RPC
func (s *GRPCControlServer) ExecuteCommands(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var batch shared.CommandBatch
	if err := control.Decode(in, &batch); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if len(batch.Commands) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty command batch")
	}
	log.WithFields(log.Fields{
		"request_id": batch.RequestID,
		"summary":    batch.Summary,
	}).Info("Command batch received over gRPC")

	out, err := control.Encode(s.core.ExecuteBatch(batch))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// ExecuteCommand implements the ExecuteCommand RPC
func (s *GRPCControlServer) ExecuteCommand(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd shared.Command
	if err := control.Decode(in, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.core.Apply(cmd)
	if err != nil {
		return nil, control.StatusFromError(err)
	}
	out, err := control.Encode(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// HealthCheck implements the HealthCheck RPC
func (s *GRPCControlServer) HealthCheck(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("healthy"), nil
}
