package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
)

func TestJitteredWithinBounds(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := jittered(d)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("jittered(%v) = %v, outside ±10%%", d, got)
		}
	}
}

func TestJitteredZeroIsUnchanged(t *testing.T) {
	if jittered(0) != 0 {
		t.Error("expected jittered(0) to stay 0")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := registry.New(auth.NewValidator([]string{"T"}))
	p := pool.New(pool.Config{MaxConnections: 1})
	j := New(reg, p, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestTickReapsExpiredInstances(t *testing.T) {
	reg := registry.New(auth.NewValidator([]string{"T"}))
	reg.RegisterDirect("T", "10.0.0.1:9000", []string{"pkg.Foo"})
	p := pool.New(pool.Config{MaxConnections: 1})
	j := New(reg, p, time.Hour, -time.Second) // negative timeout: everything is immediately stale

	j.tick()

	if _, ok := reg.Lookup("Foo"); ok {
		t.Error("expected instance to be reaped by tick")
	}
}
