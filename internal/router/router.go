// Package router implements the request router/forwarder (C6): the
// catch-all entry point for every external RPC whose method path is not
// served by the gateway itself. Installed as grpc.UnknownServiceHandler,
// grounded on the FeckMell transparent-proxy pattern
// (grpc.MethodFromServerStream + grpc.ClientConn.NewStream bidirectional
// byte forwarding) generalized to the gateway's two instance kinds.
package router

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gwerrors "github.com/Opizontas-Studio/grpc-opizontas/internal/errors"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/gatewaypb"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/logging"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/metrics"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/session"
)

// Config bounds the router's request handling, sourced from config.RouterConfig.
type Config struct {
	RequestTimeout        time.Duration
	RetryAttempts         int
	MaxConcurrentRequests int
}

// Router is the gateway's C6 forwarder.
type Router struct {
	cfg      Config
	registry *registry.Registry
	sessions *session.Manager
	pool     *pool.Pool
	sem      chan struct{}
	tracer   trace.Tracer
}

// New builds a Router. tracer may be the no-op tracer when OTel export is
// disabled (see internal/tracing).
func New(cfg Config, reg *registry.Registry, sessions *session.Manager, p *pool.Pool) *Router {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = 1
	}
	return &Router{
		cfg:      cfg,
		registry: reg,
		sessions: sessions,
		pool:     p,
		sem:      make(chan struct{}, cfg.MaxConcurrentRequests),
		tracer:   otel.Tracer("gatewaypb.router"),
	}
}

// Handler implements the grpc.UnknownServiceHandler signature. It is
// registered against the server so every method the gateway doesn't own
// falls through here.
func (r *Router) Handler(srv interface{}, serverStream grpc.ServerStream) error {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	default:
		return status.Error(grpccodes.ResourceExhausted, "too many concurrent requests")
	}

	start := time.Now()
	fullMethod, ok := grpc.MethodFromServerStream(serverStream)
	if !ok {
		return status.Error(grpccodes.Internal, "missing grpc method in stream context")
	}

	ctx, span := r.tracer.Start(serverStream.Context(), "router.forward", trace.WithAttributes(
		attribute.String("rpc.method_path", fullMethod),
	))
	defer span.End()

	serviceName, err := ExtractServiceName(fullMethod)
	if err != nil {
		return gwerrors.ToStatus(err)
	}

	inst, found := r.registry.Lookup(serviceName)
	if !found {
		return status.Error(grpccodes.Unavailable, "service not registered")
	}

	deadline := r.cfg.RequestTimeout
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}

	var outcome string
	var forwardErr error
	switch inst.Kind {
	case registry.KindReverseSession:
		forwardErr = r.forwardReverse(ctx, serverStream, fullMethod, inst, deadline)
	default:
		forwardErr = r.forwardDirect(ctx, serverStream, fullMethod, inst, deadline)
	}
	if forwardErr != nil {
		outcome = "error"
		span.SetStatus(codes.Error, forwardErr.Error())
	} else {
		outcome = "ok"
	}
	metrics.ObserveForward(string(inst.Kind), outcome, time.Since(start).Seconds())

	logging.Debug("forwarded request",
		zap.String("service", serviceName),
		zap.String("method", fullMethod),
		zap.String("instance_kind", string(inst.Kind)),
		zap.String("outcome", outcome),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)

	return forwardErr
}

// forwardReverse hands the request to the owning session's Forward and
// relays the result back over serverStream as a single Frame. Reverse
// sessions are never retried: the call has already been delivered and the
// backend cannot be presumed idempotent.
func (r *Router) forwardReverse(ctx context.Context, serverStream grpc.ServerStream, fullMethod string, inst *registry.ServiceInstance, deadline time.Duration) error {
	sess, ok := r.sessions.Get(inst.ConnectionID)
	if !ok {
		return status.Error(grpccodes.Unavailable, "service not registered")
	}

	frame := &gatewaypb.Frame{}
	if err := serverStream.RecvMsg(frame); err != nil {
		return err
	}

	req := &gatewaypb.ForwardRequest{
		RequestID:     uuid.New().String(),
		MethodPath:    fullMethod,
		Payload:       frame.Payload,
		TimeoutSecond: deadline.Seconds(),
	}

	result, err := sess.Forward(ctx, req, deadline)
	if err != nil {
		return gwerrors.ToStatus(err)
	}
	if result.ErrorMessage != "" {
		return status.Error(grpccodes.Code(result.StatusCode), result.ErrorMessage)
	}
	return serverStream.SendMsg(&gatewaypb.Frame{Payload: result.Payload})
}

// forwardDirect acquires a pooled channel and transparently proxies raw
// frames in both directions, retrying ConnectFailed per router.retry_attempts
// with exponential backoff (base 50ms, cap 1s).
func (r *Router) forwardDirect(ctx context.Context, serverStream grpc.ServerStream, fullMethod string, inst *registry.ServiceInstance, deadline time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 1 * time.Second
	bo.MaxElapsedTime = 0

	var clientStream grpc.ClientStream
	var err error
	for attempt := 0; ; attempt++ {
		var conn *grpc.ClientConn
		conn, err = r.pool.Acquire(callCtx, inst.Address)
		if err == nil {
			clientStream, err = conn.NewStream(callCtx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}, fullMethod)
		}
		if err == nil {
			break
		}
		if attempt >= r.cfg.RetryAttempts {
			return gwerrors.ToStatus(gwerrors.Wrap(err, grpccodes.Unavailable, "failed to connect to backend"))
		}
		wait := bo.NextBackOff()
		select {
		case <-time.After(wait):
		case <-callCtx.Done():
			return gwerrors.ToStatus(gwerrors.ErrDeadlineExceeded)
		}
	}

	c2s := forwardFrames(clientStream, serverStream)
	s2c := forwardFrames(serverStream, clientStream)

	for i := 0; i < 2; i++ {
		select {
		case err := <-c2s:
			if err == io.EOF {
				continue
			}
			return err
		case err := <-s2c:
			_ = clientStream.CloseSend()
			if err == io.EOF {
				continue
			}
			return err
		}
	}
	return nil
}

// frameStream is the minimal surface forwardFrames needs from either a
// grpc.ServerStream or a grpc.ClientStream.
type frameStream interface {
	SendMsg(m interface{}) error
	RecvMsg(m interface{}) error
}

// forwardFrames copies opaque Frame payloads from src to dst in a
// goroutine, reporting the terminal error (io.EOF on a clean half-close).
func forwardFrames(src, dst frameStream) chan error {
	ret := make(chan error, 1)
	go func() {
		for {
			frame := &gatewaypb.Frame{}
			if err := src.RecvMsg(frame); err != nil {
				ret <- err
				return
			}
			if err := dst.SendMsg(frame); err != nil {
				ret <- err
				return
			}
		}
	}()
	return ret
}
