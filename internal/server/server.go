// Package server builds the gateway's *grpc.Server (C8): registers the
// hand-written RegistryService (Register, EstablishConnection) and installs
// the router as the catch-all for every other method. Grounded on the
// teacher's internal/cluster/cp/server.go Start/Stop shape (net.Listen +
// grpc.Server.Serve, GracefulStop on Stop), generalized to also force the
// A7 JSON/Frame codec and wire an UnknownServiceHandler.
package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/gatewaypb"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/logging"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/router"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/session"
)

func init() {
	encoding.RegisterCodec(gatewaypb.Codec{})
}

// Server is the gateway's gRPC listener.
type Server struct {
	address    string
	grpcServer *grpc.Server
	registry   *registry.Registry
	validator  *auth.Validator
	sessions   *session.Manager
}

// New builds a Server bound to address, wiring reg/validator/sessions and
// installing router as the UnknownServiceHandler for every forwarded call.
func New(address string, reg *registry.Registry, validator *auth.Validator, sessions *session.Manager, r *router.Router) *Server {
	s := &Server{
		address:   address,
		registry:  reg,
		validator: validator,
		sessions:  sessions,
	}

	s.grpcServer = grpc.NewServer(
		grpc.ForceServerCodec(gatewaypb.Codec{}),
		grpc.UnknownServiceHandler(r.Handler),
	)
	gatewaypb.RegisterRegistryServiceServer(s.grpcServer, s)
	return s
}

// Register implements gatewaypb.RegistryServiceServer's unary RPC (C1/C3):
// validates the token and upserts a DirectAddress instance.
func (s *Server) Register(ctx context.Context, req *gatewaypb.RegisterRequest) (*gatewaypb.RegisterResponse, error) {
	if err := s.registry.RegisterDirect(req.APIKey, req.Address, req.Services); err != nil {
		return &gatewaypb.RegisterResponse{Success: false, Message: err.Error()}, nil
	}
	return &gatewaypb.RegisterResponse{Success: true, Message: "registered"}, nil
}

// EstablishConnection implements gatewaypb.RegistryServiceServer's bidi
// stream (C5): it hands the stream to a fresh session.Session for its
// entire lifetime.
func (s *Server) EstablishConnection(stream gatewaypb.EstablishConnectionStream) error {
	sess := session.New(s.registry, s.validator, s.sessions)
	return sess.Run(stream.Context(), stream)
}

// Start blocks serving on s.address until Stop is called or Serve fails.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	logging.Info("gateway gRPC server starting", zap.String("address", s.address))
	return s.grpcServer.Serve(lis)
}

// Stop gracefully drains in-flight RPCs and stops the server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
	logging.Info("gateway gRPC server stopped")
}
