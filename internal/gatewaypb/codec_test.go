package gatewaypb

import "testing"

func TestCodecRoundTripsJSONMessage(t *testing.T) {
	c := Codec{}
	in := &RegisterRequest{APIKey: "T", Address: "10.0.0.1:9000", Services: []string{"pkg.Foo"}}

	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out RegisterRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.APIKey != in.APIKey || out.Address != in.Address || len(out.Services) != 1 {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestCodecFramePassesThroughRawBytes(t *testing.T) {
	c := Codec{}
	in := &Frame{Payload: []byte{0x01, 0x02, 0x03}}

	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != string(in.Payload) {
		t.Errorf("expected raw passthrough, got %v", data)
	}

	var out Frame
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(out.Payload) != string(in.Payload) {
		t.Errorf("got %v, want %v", out.Payload, in.Payload)
	}
}

func TestCodecName(t *testing.T) {
	if (Codec{}).Name() != "gatewaypb-json" {
		t.Errorf("unexpected codec name %q", (Codec{}).Name())
	}
}
