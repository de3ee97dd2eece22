package gatewaypb

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type fakeRegistryServer struct {
	registerCalled bool
	establishCalled bool
}

func (f *fakeRegistryServer) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	f.registerCalled = true
	return &RegisterResponse{Success: true, Message: req.Address}, nil
}

func (f *fakeRegistryServer) EstablishConnection(stream EstablishConnectionStream) error {
	f.establishCalled = true
	return nil
}

func TestRegisterHandlerDecodesAndDispatches(t *testing.T) {
	srv := &fakeRegistryServer{}
	dec := func(v interface{}) error {
		*v.(*RegisterRequest) = RegisterRequest{APIKey: "T", Address: "10.0.0.1:9000"}
		return nil
	}

	resp, err := registerHandler(srv, context.Background(), dec, nil)
	if err != nil {
		t.Fatalf("registerHandler: %v", err)
	}
	if !srv.registerCalled {
		t.Error("expected Register to be called")
	}
	if resp.(*RegisterResponse).Message != "10.0.0.1:9000" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestRegisterHandlerRunsInterceptor(t *testing.T) {
	srv := &fakeRegistryServer{}
	dec := func(v interface{}) error {
		*v.(*RegisterRequest) = RegisterRequest{APIKey: "T"}
		return nil
	}

	var sawMethod string
	interceptor := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		sawMethod = info.FullMethod
		return handler(ctx, req)
	}

	if _, err := registerHandler(srv, context.Background(), dec, interceptor); err != nil {
		t.Fatalf("registerHandler: %v", err)
	}
	if sawMethod != ServiceName+"/Register" {
		t.Errorf("expected interceptor to see %s/Register, got %q", ServiceName, sawMethod)
	}
	if !srv.registerCalled {
		t.Error("expected Register to be called via interceptor handler")
	}
}

func TestRegisterHandlerPropagatesDecodeError(t *testing.T) {
	srv := &fakeRegistryServer{}
	wantErr := errors.New("boom")
	dec := func(v interface{}) error { return wantErr }

	if _, err := registerHandler(srv, context.Background(), dec, nil); err != wantErr {
		t.Errorf("expected decode error to propagate, got %v", err)
	}
}

type fakeGRPCServerStream struct {
	ctx context.Context
	in  *ConnectionMessage
}

func (f *fakeGRPCServerStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeGRPCServerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeGRPCServerStream) SetTrailer(metadata.MD)       {}
func (f *fakeGRPCServerStream) Context() context.Context     { return f.ctx }
func (f *fakeGRPCServerStream) SendMsg(m interface{}) error   { return nil }
func (f *fakeGRPCServerStream) RecvMsg(m interface{}) error {
	*m.(*ConnectionMessage) = *f.in
	return nil
}

func TestEstablishConnectionHandlerWrapsStream(t *testing.T) {
	srv := &fakeRegistryServer{}
	stream := &fakeGRPCServerStream{ctx: context.Background(), in: &ConnectionMessage{}}

	if err := establishConnectionHandler(srv, stream); err != nil {
		t.Fatalf("establishConnectionHandler: %v", err)
	}
	if !srv.establishCalled {
		t.Error("expected EstablishConnection to be called")
	}
}
