package router

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/gatewaypb"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/session"
)

// fakeServerStream is a minimal grpc.ServerStream for tests that never
// touch real transport internals (Handler's own plumbing, or forwardReverse
// called directly).
type fakeServerStream struct {
	ctx context.Context
	in  *gatewaypb.Frame
	out []*gatewaypb.Frame
}

func (f *fakeServerStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeServerStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeServerStream) SetTrailer(metadata.MD)       {}
func (f *fakeServerStream) Context() context.Context     { return f.ctx }
func (f *fakeServerStream) SendMsg(m interface{}) error {
	f.out = append(f.out, m.(*gatewaypb.Frame))
	return nil
}
func (f *fakeServerStream) RecvMsg(m interface{}) error {
	*m.(*gatewaypb.Frame) = *f.in
	return nil
}

func newTestRouter() *Router {
	validator := auth.NewValidator([]string{"T"})
	reg := registry.New(validator)
	sessions := session.NewManager()
	p := pool.New(pool.Config{MaxConnections: 4})
	return New(Config{RequestTimeout: time.Second, RetryAttempts: 1, MaxConcurrentRequests: 1}, reg, sessions, p)
}

func TestHandlerResourceExhausted(t *testing.T) {
	r := newTestRouter()
	r.sem <- struct{}{} // occupy the only slot

	stream := &fakeServerStream{ctx: context.Background(), in: &gatewaypb.Frame{}}
	err := r.Handler(nil, stream)

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
}

func TestHandlerMissingMethod(t *testing.T) {
	r := newTestRouter()
	stream := &fakeServerStream{ctx: context.Background(), in: &gatewaypb.Frame{}}
	err := r.Handler(nil, stream)

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("expected Internal for missing grpc method, got %v", err)
	}
}

func TestForwardReverseUnavailableWhenSessionMissing(t *testing.T) {
	r := newTestRouter()
	inst := &registry.ServiceInstance{ConnectionID: "missing", Kind: registry.KindReverseSession}
	stream := &fakeServerStream{ctx: context.Background(), in: &gatewaypb.Frame{Payload: []byte("x")}}

	err := r.forwardReverse(context.Background(), stream, "/pkg.Foo/Bar", inst, time.Second)

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}
