// Package session implements the reverse-connection session layer (C5): a
// state machine over one bidirectional EstablishConnection stream between
// a backend and the gateway, multiplexing forwarded requests by request id.
//
// Grounded on the teacher's internal/cluster/cp/server.go ConfigStream
// handler: a dedicated stream.Recv() goroutine feeding a channel, and a
// select loop that also watches a broadcast channel and the stream's
// context — adapted here so the select loop handles inbound messages and
// stream or session teardown, while a separate writer goroutine drains the
// outbound ForwardRequests enqueued by the router.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	gwerrors "github.com/Opizontas-Studio/grpc-opizontas/internal/errors"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/gatewaypb"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/logging"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
)

// State is one of the four states spec.md §4.5 names.
type State int

const (
	StateAwaitRegister State = iota
	StateActive
	StateClosing
	StateClosed
)

// Result is what Forward's caller receives once the backend replies, the
// deadline fires, or the session closes while the request is in flight.
type Result struct {
	StatusCode   int32
	Payload      []byte
	ErrorMessage string
	Err          error // non-nil for DeadlineExceeded / Cancelled / Unavailable
}

type pendingEntry struct {
	sink chan *Result
	done chan struct{}
}

// Session owns one backend's reverse stream.
type Session struct {
	registry  *registry.Registry
	validator *auth.Validator
	manager   *Manager

	mu           sync.Mutex
	state        State
	connectionID string

	pendingMu sync.Mutex
	pending   map[string]*pendingEntry

	send chan *gatewaypb.ConnectionMessage

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Session bound to reg/validator, tracked in mgr once it
// registers. Run must be called once to drive it against a live stream.
func New(reg *registry.Registry, validator *auth.Validator, mgr *Manager) *Session {
	return &Session{
		registry:  reg,
		validator: validator,
		manager:   mgr,
		pending:   make(map[string]*pendingEntry),
		send:      make(chan *gatewaypb.ConnectionMessage, 64),
		closed:    make(chan struct{}),
	}
}

// Run drives the session's full lifecycle against stream until the stream
// ends or ctx is cancelled. It returns once the session has reached Closed.
func (s *Session) Run(ctx context.Context, stream gatewaypb.EstablishConnectionStream) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	if first.Register == nil {
		s.sendBestEffort(stream, &gatewaypb.ConnectionMessage{Status: &gatewaypb.ConnectionStatus{
			Status: gatewaypb.StatusError, Message: "first message must be ConnectionRegister",
		}})
		return nil
	}
	if !s.validator.Validate(first.Register.APIKey) {
		s.sendBestEffort(stream, &gatewaypb.ConnectionMessage{Status: &gatewaypb.ConnectionStatus{
			Status: gatewaypb.StatusError, Message: "unauthenticated",
		}})
		return nil
	}

	connID, err := s.registry.RegisterSession(first.Register.APIKey, first.Register.Services)
	if err != nil {
		s.sendBestEffort(stream, &gatewaypb.ConnectionMessage{Status: &gatewaypb.ConnectionStatus{
			Status: gatewaypb.StatusError, Message: err.Error(),
		}})
		return nil
	}

	s.mu.Lock()
	s.connectionID = connID
	s.state = StateActive
	s.mu.Unlock()
	s.registry.SetSessionCloser(connID, s)
	s.manager.Track(s)

	if err := stream.Send(&gatewaypb.ConnectionMessage{Status: &gatewaypb.ConnectionStatus{
		ConnectionID: connID, Status: gatewaypb.StatusConnected,
	}}); err != nil {
		s.teardown(gwerrors.ErrUnavailable)
		return err
	}

	logging.Debug("reverse session established", zap.String("connection_id", connID))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(stream)
	}()

	type recvResult struct {
		msg *gatewaypb.ConnectionMessage
		err error
	}
	recvCh := make(chan recvResult, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvCh <- recvResult{err: err}
				return
			}
			recvCh <- recvResult{msg: msg}
		}
	}()

loop:
	for {
		select {
		case r := <-recvCh:
			if r.err != nil {
				logging.Info("reverse session disconnected", zap.String("connection_id", connID), zap.Error(r.err))
				break loop
			}
			s.handleInbound(stream, r.msg)

		case <-stream.Context().Done():
			break loop

		case <-ctx.Done():
			break loop

		case <-s.closed:
			break loop
		}
	}

	s.teardown(gwerrors.ErrUnavailable)
	wg.Wait()
	return nil
}

func (s *Session) handleInbound(stream gatewaypb.EstablishConnectionStream, msg *gatewaypb.ConnectionMessage) {
	switch {
	case msg.Heartbeat != nil:
		s.mu.Lock()
		connID := s.connectionID
		s.mu.Unlock()
		if msg.Heartbeat.ConnectionID == "" || msg.Heartbeat.ConnectionID != connID {
			logging.Warn("heartbeat with empty or mismatched connection id ignored",
				zap.String("session_connection_id", connID),
				zap.String("heartbeat_connection_id", msg.Heartbeat.ConnectionID))
			return
		}
		if err := s.registry.Heartbeat(connID); err != nil {
			logging.Warn("heartbeat for unknown connection", zap.String("connection_id", connID), zap.Error(err))
		}

	case msg.Response != nil:
		s.deliver(msg.Response)

	case msg.Register != nil:
		s.sendBestEffort(stream, &gatewaypb.ConnectionMessage{Status: &gatewaypb.ConnectionStatus{
			Status: gatewaypb.StatusError, Message: "already registered",
		}})

	case msg.Subscription != nil, msg.Event != nil:
		// Event-bus variants are accepted and discarded; spec.md leaves this
		// an open question and this expansion resolves it out of scope.

	default:
		logging.Warn("unrecognized connection message, ignoring")
	}
}

func (s *Session) writeLoop(stream gatewaypb.EstablishConnectionStream) {
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := stream.Send(msg); err != nil {
				return
			}
		case <-s.closed:
			// Drain whatever is already queued, best-effort, then stop.
			for {
				select {
				case msg := <-s.send:
					_ = stream.Send(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) sendBestEffort(stream gatewaypb.EstablishConnectionStream, msg *gatewaypb.ConnectionMessage) {
	_ = stream.Send(msg)
}

// Forward sends req to the backend and waits for the matching
// ForwardResponse, the deadline, or session teardown — whichever comes
// first.
func (s *Session) Forward(ctx context.Context, req *gatewaypb.ForwardRequest, deadline time.Duration) (*Result, error) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return nil, gwerrors.ErrUnavailable
	}
	s.mu.Unlock()

	entry := &pendingEntry{sink: make(chan *Result, 1), done: make(chan struct{})}
	s.pendingMu.Lock()
	s.pending[req.RequestID] = entry
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, req.RequestID)
		s.pendingMu.Unlock()
		close(entry.done)
	}()

	select {
	case s.send <- &gatewaypb.ConnectionMessage{Request: req}:
	case <-s.closed:
		return nil, gwerrors.ErrUnavailable
	case <-ctx.Done():
		return nil, gwerrors.ErrCancelled
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-entry.sink:
		if res.Err != nil {
			return nil, res.Err
		}
		return res, nil
	case <-timer.C:
		return nil, gwerrors.ErrDeadlineExceeded
	case <-ctx.Done():
		return nil, gwerrors.ErrCancelled
	case <-s.closed:
		return nil, gwerrors.ErrUnavailable
	}
}

// deliver completes the pending sink matching resp.RequestID, if any. A
// response with no matching entry is a late or duplicate reply and is
// dropped with a warning, per spec.md §4.5.
func (s *Session) deliver(resp *gatewaypb.ForwardResponse) {
	s.pendingMu.Lock()
	entry, ok := s.pending[resp.RequestID]
	if ok {
		delete(s.pending, resp.RequestID)
	}
	s.pendingMu.Unlock()

	if !ok {
		logging.Warn("forward response for unknown or already-completed request", zap.String("request_id", resp.RequestID))
		return
	}
	select {
	case entry.sink <- &Result{StatusCode: resp.StatusCode, Payload: resp.Payload, ErrorMessage: resp.ErrorMessage}:
	case <-entry.done:
	}
}

// Close implements registry.SessionCloser: it is invoked by the registry's
// ExpireSweep when this session's instance has gone stale.
func (s *Session) Close(reason error) {
	s.teardown(reason)
}

func (s *Session) teardown(reason error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	connID := s.connectionID
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.closed) })

	s.pendingMu.Lock()
	for id, entry := range s.pending {
		delete(s.pending, id)
		select {
		case entry.sink <- &Result{Err: reason}:
		default:
		}
	}
	s.pendingMu.Unlock()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	if connID != "" {
		s.registry.RemoveSession(connID)
		s.manager.Untrack(s)
	}
}

// ConnectionID returns the session's assigned id, or "" before registration.
func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}

// String renders the session state for logging.
func (st State) String() string {
	switch st {
	case StateAwaitRegister:
		return "AwaitRegister"
	case StateActive:
		return "Active"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
