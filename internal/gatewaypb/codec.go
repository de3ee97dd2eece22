package gatewaypb

import (
	"encoding/json"
	"fmt"
)

// Codec implements grpc/encoding.Codec. Messages of type *Frame pass through
// as raw bytes (the router's transparent forwarding path); every other
// message type is JSON-encoded. Registering this codec (see
// internal/server) is what lets RegisterRequest/ConnectionMessage travel
// over grpc-go's transport without protoc-generated marshalers.
type Codec struct{}

// Name is the codec identifier negotiated over the wire.
func (Codec) Name() string { return "gatewaypb-json" }

func (Codec) Marshal(v interface{}) ([]byte, error) {
	if f, ok := v.(*Frame); ok {
		return f.Payload, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gatewaypb: marshal %T: %w", v, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	if f, ok := v.(*Frame); ok {
		f.Payload = append([]byte(nil), data...)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("gatewaypb: unmarshal into %T: %w", v, err)
	}
	return nil
}
