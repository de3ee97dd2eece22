// Package gatewaypb defines the gateway's wire messages and a JSON-based
// gRPC codec for them.
//
// The messages named here (RegisterRequest, ConnectionMessage and its
// variants) are ordinarily protoc-generated types. This repository defines
// them as plain, JSON-tagged Go structs instead and forces grpc's codec
// registry to use a matching JSON codec (see codec.go) for the gateway's
// own RegistryService. Forwarded business payloads never go through this
// path at all — the router relays them as opaque bytes (Frame) without
// decoding, which is what lets the gateway stay ignorant of downstream
// protobuf schemas in the first place.
package gatewaypb

// RegisterRequest is the direct-address registration call.
type RegisterRequest struct {
	APIKey   string   `json:"api_key"`
	Address  string   `json:"address"`
	Services []string `json:"services"`
}

// RegisterResponse acknowledges a RegisterRequest.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectionStatusCode enumerates ConnectionStatus.Status values.
type ConnectionStatusCode string

const (
	StatusConnected    ConnectionStatusCode = "CONNECTED"
	StatusDisconnected ConnectionStatusCode = "DISCONNECTED"
	StatusError        ConnectionStatusCode = "ERROR"
)

// ConnectionRegister is the first message a backend sends on a reverse
// stream. It carries no connection id; the gateway assigns one in its
// ConnectionStatus reply.
type ConnectionRegister struct {
	APIKey   string   `json:"api_key"`
	Services []string `json:"services"`
}

// ConnectionStatus is sent gateway→backend to assign a connection id or
// report a terminal condition.
type ConnectionStatus struct {
	ConnectionID string               `json:"connection_id"`
	Status       ConnectionStatusCode `json:"status"`
	Message      string               `json:"message,omitempty"`
}

// Heartbeat is the backend's keep-alive on a reverse stream.
type Heartbeat struct {
	ConnectionID string `json:"connection_id"`
}

// ForwardRequest is a forwarded external RPC pushed gateway→backend.
type ForwardRequest struct {
	RequestID     string            `json:"request_id"`
	MethodPath    string            `json:"method_path"`
	Headers       map[string]string `json:"headers,omitempty"`
	Payload       []byte            `json:"payload"`
	TimeoutSecond float64           `json:"timeout_seconds"`
}

// ForwardResponse is the backend's reply to a ForwardRequest.
type ForwardResponse struct {
	RequestID    string `json:"request_id"`
	StatusCode   int32  `json:"status_code"`
	Payload      []byte `json:"payload,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SubscriptionRequest is the optional event-bus subscribe/unsubscribe
// variant. The session layer accepts and discards it (see DESIGN.md).
type SubscriptionRequest struct {
	Topics   []string `json:"topics"`
	Subscribe bool    `json:"subscribe"`
}

// EventMessage is the optional published-event variant, accepted and
// discarded in either direction.
type EventMessage struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// ConnectionMessage is the tagged union carried on EstablishConnection's
// bidirectional stream. Exactly one field is expected to be non-nil per
// message, mirroring a protobuf oneof.
type ConnectionMessage struct {
	Register     *ConnectionRegister   `json:"register,omitempty"`
	Status       *ConnectionStatus     `json:"status,omitempty"`
	Heartbeat    *Heartbeat            `json:"heartbeat,omitempty"`
	Request      *ForwardRequest       `json:"request,omitempty"`
	Response     *ForwardResponse      `json:"response,omitempty"`
	Subscription *SubscriptionRequest  `json:"subscription,omitempty"`
	Event        *EventMessage         `json:"event,omitempty"`
}

// Frame is an opaque, gateway-unparsed payload used for DirectAddress
// forwarding: the router copies raw bytes to and from a pooled channel
// without ever constructing a business-domain message type.
type Frame struct {
	Payload []byte
}
