package control

import (
	"context"
	"fmt"

	"speakcity/shared"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TrafficControlClient is the raw client API for the TrafficControl service.
type TrafficControlClient interface {
	GetSnapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetMetrics(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ExecuteCommands(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ExecuteCommand(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type trafficControlClient struct {
	cc grpc.ClientConnInterface
}

// NewTrafficControlClient returns a raw client bound to cc.
func NewTrafficControlClient(cc grpc.ClientConnInterface) TrafficControlClient {
	return &trafficControlClient{cc}
}

func (c *trafficControlClient) GetSnapshot(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetSnapshotMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trafficControlClient) GetMetrics(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetMetricsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trafficControlClient) ExecuteCommands(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteCommandsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trafficControlClient) ExecuteCommand(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ExecuteCommandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trafficControlClient) HealthCheck(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, HealthCheckMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Client speaks the TrafficControl service in terms of the shared types.
type Client struct {
	raw  TrafficControlClient
	conn *grpc.ClientConn
}

// Dial opens a plaintext connection to a simulation server.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{raw: NewTrafficControlClient(conn), conn: conn}, nil
}

// NewClient wraps an existing connection. Close is then a no-op.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{raw: NewTrafficControlClient(cc)}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Snapshot(ctx context.Context) (shared.Snapshot, error) {
	var snap shared.Snapshot
	out, err := c.raw.GetSnapshot(ctx, &emptypb.Empty{})
	if err != nil {
		return snap, err
	}
	err = Decode(out, &snap)
	return snap, err
}

func (c *Client) Metrics(ctx context.Context) (shared.Metrics, error) {
	var m shared.Metrics
	out, err := c.raw.GetMetrics(ctx, &emptypb.Empty{})
	if err != nil {
		return m, err
	}
	err = Decode(out, &m)
	return m, err
}

// Execute sends a whole batch. Per-command failures come back in the
// response results.
func (c *Client) Execute(ctx context.Context, batch shared.CommandBatch) (shared.CommandResponse, error) {
	var resp shared.CommandResponse
	in, err := Encode(batch)
	if err != nil {
		return resp, err
	}
	out, err := c.raw.ExecuteCommands(ctx, in)
	if err != nil {
		return resp, err
	}
	err = Decode(out, &resp)
	return resp, err
}

// ExecuteOne sends a single command. A rejected command surfaces as a gRPC
// status error.
func (c *Client) ExecuteOne(ctx context.Context, cmd shared.Command) (shared.CommandResult, error) {
	var res shared.CommandResult
	in, err := Encode(cmd)
	if err != nil {
		return res, err
	}
	out, err := c.raw.ExecuteCommand(ctx, in)
	if err != nil {
		return res, err
	}
	err = Decode(out, &res)
	return res, err
}

func (c *Client) Health(ctx context.Context) (string, error) {
	out, err := c.raw.HealthCheck(ctx, &emptypb.Empty{})
	if err != nil {
		return "", err
	}
	return out.GetValue(), nil
}
