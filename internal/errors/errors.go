// Package errors defines the gateway's error taxonomy and its mapping onto
// gRPC status codes. Every error kind named in the design is a sentinel
// *GatewayError value; callers wrap it with context via Wrap or WithDetails
// rather than constructing ad-hoc errors.
package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GatewayError is an error carrying the gRPC status code it should surface as.
type GatewayError struct {
	Code       codes.Code
	Message    string
	Details    string
	underlying error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", msg, e.underlying)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.underlying
}

// GRPCStatus lets status.FromError and status.Convert recognize GatewayError directly.
func (e *GatewayError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// WithDetails returns a copy of e with Details set.
func (e *GatewayError) WithDetails(details string) *GatewayError {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a GatewayError with no underlying cause.
func New(code codes.Code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message}
}

// Wrap attaches a gRPC status code and message to an underlying error.
func Wrap(err error, code codes.Code, message string) *GatewayError {
	return &GatewayError{Code: code, Message: message, underlying: err}
}

// Sentinel error kinds named by the design. Components such as the registry
// and the session layer return these values as they are, so callers can
// compare them with == or errors.Is; Wrap and WithDetails build a new
// *GatewayError that carries extra context instead.
var (
	ErrUnauthenticated   = New(codes.Unauthenticated, "unauthenticated")
	ErrEmptyServices     = New(codes.InvalidArgument, "services list must not be empty")
	ErrMalformedPath     = New(codes.Unimplemented, "malformed method path")
	ErrServiceNotFound   = New(codes.Unavailable, "service not registered")
	ErrUnknownConnection = New(codes.NotFound, "unknown connection")
	ErrDeadlineExceeded  = New(codes.DeadlineExceeded, "deadline exceeded")
	ErrCancelled         = New(codes.Canceled, "request cancelled")
	ErrPoolExhausted     = New(codes.Unavailable, "connection pool exhausted")
	ErrConnectFailed     = New(codes.Unavailable, "failed to connect to backend")
	ErrUnavailable       = New(codes.Unavailable, "backend unavailable")
	ErrInternal          = New(codes.Internal, "internal error")
	ErrResourceExhausted = New(codes.ResourceExhausted, "too many concurrent requests")
)

// Is reports whether err is (or wraps) target, following the standard library
// convention so call sites can do errors.Is(err, errors.ErrServiceNotFound).
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ToStatus converts any error into a gRPC status error, defaulting to
// Internal for errors that were never classified.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.GRPCStatus().Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.New(codes.Internal, err.Error()).Err()
}
