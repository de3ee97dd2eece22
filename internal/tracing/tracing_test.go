package tracing

import "testing"

func TestNewDisabledSkipsExporter(t *testing.T) {
	tr, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.IsEnabled() {
		t.Error("expected disabled tracer")
	}
	if tr.provider != nil {
		t.Error("expected no provider to be built when disabled")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close on disabled tracer: %v", err)
	}
	if tr.Tracer("test") == nil {
		t.Error("expected Tracer() to still return a usable no-op tracer")
	}
}
