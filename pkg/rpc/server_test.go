package rpc

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/driftmirror/driftmirror/pkg/config"
	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/driftmirror"
	"github.com/driftmirror/driftmirror/pkg/logging"
	"github.com/driftmirror/driftmirror/pkg/store"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, &bytes.Buffer{})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("unable to open store: %s", err)
	}
	t.Cleanup(func() { st.Close() })
	coord := coordinator.New(st, testLogger())
	return &Server{coord: coord, logger: testLogger()}
}

// call drives one request/response exchange against s.handleConn over an
// in-memory net.Pipe, mirroring what Client.Call does over a real socket.
func call(t *testing.T, s *Server, req Request) Response {
	t.Helper()
	client, server := net.Pipe()
	defer client.Close()

	go s.handleConn(context.Background(), server)

	if err := writeFrame(client, req); err != nil {
		t.Fatalf("unable to write request: %s", err)
	}
	payload, err := readFrame(client)
	if err != nil {
		t.Fatalf("unable to read response: %s", err)
	}
	resp, ok := payload.(Response)
	if !ok {
		t.Fatalf("expected a Response, got %T", payload)
	}
	return resp
}

func TestHealthCheckReportsHealthy(t *testing.T) {
	s := newTestServer(t)
	resp, ok := call(t, s, HealthCheckRequest{}).(HealthCheckResponse)
	if !ok {
		t.Fatalf("expected HealthCheckResponse, got %T", resp)
	}
	if !resp.Healthy {
		t.Error("expected Healthy to be true")
	}
}

func TestGetVersionMatchesPackage(t *testing.T) {
	s := newTestServer(t)
	resp, ok := call(t, s, GetVersionRequest{}).(GetVersionResponse)
	if !ok {
		t.Fatalf("expected GetVersionResponse, got %T", resp)
	}
	if resp.Version != driftmirror.Version {
		t.Errorf("expected version %s, got %s", driftmirror.Version, resp.Version)
	}
}

func TestGetMountStatusReportsUnmountedForUnknownPair(t *testing.T) {
	s := newTestServer(t)
	resp, ok := call(t, s, GetMountStatusRequest{SyncPairID: "missing"}).(GetMountStatusResponse)
	if !ok {
		t.Fatalf("expected GetMountStatusResponse, got %T", resp)
	}
	if resp.Mounted {
		t.Error("expected unknown sync pair to report unmounted")
	}
}

func TestUnmountUnknownPairReturnsStructuredError(t *testing.T) {
	s := newTestServer(t)
	resp, ok := call(t, s, UnmountRequest{SyncPairID: "missing"}).(UnmountResponse)
	if !ok {
		t.Fatalf("expected UnmountResponse, got %T", resp)
	}
	if resp.Error == nil {
		t.Fatal("expected an error for unmounting an unknown sync pair")
	}
	if resp.Error.Code == "" {
		t.Error("expected a structured error code")
	}
}

func TestSubscribeStreamsConfigUpdatedEvent(t *testing.T) {
	s := newTestServer(t)
	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.handleConn(ctx, server)

	if err := writeFrame(client, SubscribeRequest{}); err != nil {
		t.Fatalf("unable to subscribe: %s", err)
	}

	go func() {
		if err := s.coord.UpdateConfig(context.Background(), config.Default()); err != nil {
			t.Errorf("UpdateConfig returned error: %s", err)
		}
	}()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := readFrame(client)
	if err != nil {
		t.Fatalf("unable to read event: %s", err)
	}
	frame, ok := payload.(eventFrame)
	if !ok {
		t.Fatalf("expected eventFrame, got %T", payload)
	}
	if frame.Event.Kind != coordinator.EventConfigUpdated {
		t.Errorf("expected configUpdated event, got %s", frame.Event.Kind)
	}
}
