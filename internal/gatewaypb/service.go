package gatewaypb

import (
	"context"

	"google.golang.org/grpc"
)

// RegistryServiceServer is the gateway-owned service from spec.md §6: a
// unary Register call plus the EstablishConnection bidirectional stream
// used by reverse-connection backends. Hand-written in place of
// protoc-gen-go-grpc output (see the package doc in messages.go for why).
type RegistryServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	EstablishConnection(EstablishConnectionStream) error
}

// EstablishConnectionStream is the bidirectional stream handed to the
// server's EstablishConnection implementation.
type EstablishConnectionStream interface {
	Send(*ConnectionMessage) error
	Recv() (*ConnectionMessage, error)
	Context() context.Context
}

type establishConnectionStream struct {
	grpc.ServerStream
}

func (s *establishConnectionStream) Send(m *ConnectionMessage) error {
	return s.ServerStream.SendMsg(m)
}

func (s *establishConnectionStream) Recv() (*ConnectionMessage, error) {
	m := new(ConnectionMessage)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func registerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RegistryServiceServer).Register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ServiceName + "/Register",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RegistryServiceServer).Register(ctx, req.(*RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func establishConnectionHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RegistryServiceServer).EstablishConnection(&establishConnectionStream{ServerStream: stream})
}

// ServiceName is the fully-qualified name used in ServiceDesc and in the
// FullMethod that registerHandler reports to a unary interceptor.
const ServiceName = "gatewaypb.RegistryService"

// ServiceDesc is the hand-written equivalent of a protoc-gen-go-grpc
// _ServiceDesc for RegistryService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RegistryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    registerHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EstablishConnection",
			Handler:       establishConnectionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "gatewaypb/registry.proto",
}

// RegisterRegistryServiceServer registers srv with s using the hand-written
// ServiceDesc above.
func RegisterRegistryServiceServer(s *grpc.Server, srv RegistryServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
