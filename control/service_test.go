package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"speakcity/shared"
	"speakcity/traffic"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fakeControl answers from canned values and records the batches it gets.
type fakeControl struct {
	UnimplementedTrafficControlServer
	snapshot shared.Snapshot
	batches  []shared.CommandBatch
}

func (f *fakeControl) GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return Encode(f.snapshot)
}

func (f *fakeControl) ExecuteCommands(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var batch shared.CommandBatch
	if err := Decode(in, &batch); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.batches = append(f.batches, batch)
	resp := shared.CommandResponse{RequestID: batch.RequestID}
	for _, cmd := range batch.Commands {
		resp.Results = append(resp.Results, shared.CommandResult{Command: cmd, OK: true, Changed: true})
	}
	return Encode(resp)
}

func (f *fakeControl) ExecuteCommand(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd shared.Command
	if err := Decode(in, &cmd); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if cmd.Target != "H21" {
		return nil, StatusFromError(fmt.Errorf("%w: %q", traffic.ErrUnknownStreet, cmd.Target))
	}
	return Encode(shared.CommandResult{Command: cmd, OK: true, Changed: true, Affected: []string{"H21"}})
}

func (f *fakeControl) HealthCheck(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("healthy"), nil
}

func startFake(t *testing.T, srv TrafficControlServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterTrafficControlServer(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestClient_SnapshotRoundTrip(t *testing.T) {
	want := shared.Snapshot{
		Tick:    4200,
		SimMs:   67200,
		Width:   730,
		Height:  530,
		Streets: []shared.StreetState{
			{ID: "H21", Orientation: "horizontal", Rect: shared.Rect{X: 205, Y: 250, W: 145, H: 30}, Closed: true},
		},
		Intersections: []shared.IntersectionState{{
			ID:    "I22",
			Rect:  shared.Rect{X: 350, Y: 250, W: 30, H: 30},
			Phase: "vertical_green",
			Lights: []shared.LightState{
				{Direction: "TOP", Color: "green", Active: true},
				{Direction: "LEFT", Color: "red", Active: true, Override: true},
			},
		}},
		Cars: []shared.CarState{
			{ID: 7, X: 120.5, Y: 257.5, Rotation: 3.14159, State: "stopped_traffic", TrafficStopped: true, Street: "H20"},
		},
		Metrics: shared.Metrics{Tick: 4200, Cars: 1, ClosedStreets: 1, OpenStreets: 35, Density: "low"},
	}
	c := startFake(t, &fakeControl{snapshot: want})

	got, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_LongRunTimeStaysExact(t *testing.T) {
	year := 365 * 24 * time.Hour
	want := shared.Snapshot{
		Tick:  int64(year / (16 * time.Millisecond)),
		SimMs: year.Milliseconds() + 16,
	}
	s, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var got shared.Snapshot
	if err := Decode(s, &got); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Tick != want.Tick || got.SimMs != want.SimMs {
		t.Errorf("Expected tick %d at %dms, got tick %d at %dms", want.Tick, want.SimMs, got.Tick, got.SimMs)
	}
	if got.SimTime() != year+16*time.Millisecond {
		t.Errorf("Expected %v of sim time, got %v", year+16*time.Millisecond, got.SimTime())
	}
}

func TestClient_ExecuteBatch(t *testing.T) {
	fake := &fakeControl{}
	c := startFake(t, fake)

	batch := shared.CommandBatch{
		RequestID: "req-7",
		Summary:   "Cerrar H21 por obras",
		Commands: []shared.Command{
			{Action: "cerrar_calle", Target: "H21", Seconds: 30, Cause: "obras"},
			{Action: "cambiar_semaforo_rojo", Target: "I22 TOP"},
		},
	}
	resp, err := c.Execute(context.Background(), batch)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.RequestID != "req-7" || len(resp.Results) != 2 {
		t.Fatalf("Unexpected response %+v", resp)
	}
	if diff := cmp.Diff([]shared.CommandBatch{batch}, fake.batches); diff != "" {
		t.Errorf("Server saw a different batch (-sent +got):\n%s", diff)
	}
}

func TestClient_ExecuteOneMapsErrors(t *testing.T) {
	c := startFake(t, &fakeControl{})

	res, err := c.ExecuteOne(context.Background(), shared.Command{Action: "cerrar_calle", Target: "H21"})
	if err != nil || !res.OK || len(res.Affected) != 1 {
		t.Errorf("Expected success, got %+v (%v)", res, err)
	}

	_, err = c.ExecuteOne(context.Background(), shared.Command{Action: "cerrar_calle", Target: "H99"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestClient_HealthAndUnimplemented(t *testing.T) {
	c := startFake(t, &fakeControl{})

	if got, err := c.Health(context.Background()); err != nil || got != "healthy" {
		t.Errorf("Expected healthy, got %q (%v)", got, err)
	}
	if _, err := c.Metrics(context.Background()); status.Code(err) != codes.Unimplemented {
		t.Errorf("Expected Unimplemented, got %v", err)
	}
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("%w: %q", traffic.ErrUnknownStreet, "H99"), codes.NotFound},
		{fmt.Errorf("%w: %q", traffic.ErrUnknownLight, "I22"), codes.NotFound},
		{traffic.ErrUnknownCar, codes.NotFound},
		{fmt.Errorf("%w: %q", traffic.ErrInvalidColor, "blue"), codes.InvalidArgument},
		{traffic.ErrInvalidDensity, codes.InvalidArgument},
		{traffic.ErrUnknownAction, codes.InvalidArgument},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := status.Code(StatusFromError(tt.err)); got != tt.want {
			t.Errorf("StatusFromError(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
	if StatusFromError(nil) != nil {
		t.Errorf("Expected nil for nil error")
	}
}
