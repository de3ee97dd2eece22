package server

import (
	"context"
	"testing"
	"time"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/gatewaypb"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/router"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/session"
)

type fakeEstablishStream struct {
	ctx      context.Context
	toServer chan *gatewaypb.ConnectionMessage
	toClient chan *gatewaypb.ConnectionMessage
}

func (f *fakeEstablishStream) Send(m *gatewaypb.ConnectionMessage) error {
	f.toClient <- m
	return nil
}

func (f *fakeEstablishStream) Recv() (*gatewaypb.ConnectionMessage, error) {
	m, ok := <-f.toServer
	if !ok {
		return nil, context.Canceled
	}
	return m, nil
}

func (f *fakeEstablishStream) Context() context.Context { return f.ctx }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	validator := auth.NewValidator([]string{"T"})
	reg := registry.New(validator)
	sessions := session.NewManager()
	p := pool.New(pool.Config{MaxConnections: 1})
	r := router.New(router.Config{RequestTimeout: time.Second, MaxConcurrentRequests: 1}, reg, sessions, p)
	return New(":0", reg, validator, sessions, r)
}

func TestRegisterUpsertsDirectInstance(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.Register(context.Background(), &gatewaypb.RegisterRequest{
		APIKey: "T", Address: "10.0.0.1:9000", Services: []string{"pkg.Foo"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	inst, ok := s.registry.Lookup("Foo")
	if !ok || inst.Address != "10.0.0.1:9000" {
		t.Fatalf("expected Foo to resolve to the registered address, got %+v", inst)
	}
}

func TestRegisterBadTokenFails(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.Register(context.Background(), &gatewaypb.RegisterRequest{
		APIKey: "wrong", Address: "10.0.0.1:9000",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.Success {
		t.Error("expected Register to fail for a bad token")
	}
}

func TestEstablishConnectionTracksSession(t *testing.T) {
	s := newTestServer(t)
	stream := &fakeEstablishStream{
		ctx:      context.Background(),
		toServer: make(chan *gatewaypb.ConnectionMessage, 4),
		toClient: make(chan *gatewaypb.ConnectionMessage, 4),
	}
	stream.toServer <- &gatewaypb.ConnectionMessage{Register: &gatewaypb.ConnectionRegister{
		APIKey: "T", Services: []string{"pkg.Foo"},
	}}

	done := make(chan error, 1)
	go func() { done <- s.EstablishConnection(stream) }()

	msg := <-stream.toClient
	if msg.Status == nil || msg.Status.Status != gatewaypb.StatusConnected {
		t.Fatalf("expected CONNECTED status, got %+v", msg)
	}
	connID := msg.Status.ConnectionID

	if _, ok := s.sessions.Get(connID); !ok {
		t.Error("expected session to be tracked by connection id while active")
	}

	close(stream.toServer)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EstablishConnection did not return after stream closed")
	}

	if _, ok := s.sessions.Get(connID); ok {
		t.Error("expected session to be untracked after the stream closed")
	}
}
