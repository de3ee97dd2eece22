package pool

import (
	"context"
	"testing"
	"time"
)

func TestAcquireReusesExistingConnection(t *testing.T) {
	p := New(Config{MaxConnections: 4})
	ctx := context.Background()

	c1, err := p.Acquire(ctx, "127.0.0.1:1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c2, err := p.Acquire(ctx, "127.0.0.1:1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 != c2 {
		t.Error("expected the same *grpc.ClientConn to be reused")
	}
}

func TestAcquireEvictsOverCapacity(t *testing.T) {
	p := New(Config{MaxConnections: 1})
	ctx := context.Background()

	if _, err := p.Acquire(ctx, "127.0.0.1:1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.Acquire(ctx, "127.0.0.1:2"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	stats := p.Stats()
	if _, ok := stats["127.0.0.1:1"]; ok {
		t.Error("expected the first address to have been evicted over capacity")
	}
	if _, ok := stats["127.0.0.1:2"]; !ok {
		t.Error("expected the second address to remain pooled")
	}
}

func TestSweepReapsExpiredEntries(t *testing.T) {
	p := New(Config{MaxConnections: 4, ConnectionTTL: time.Nanosecond})
	ctx := context.Background()

	if _, err := p.Acquire(ctx, "127.0.0.1:1"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(time.Millisecond)

	reaped := p.Sweep()
	if reaped != 1 {
		t.Errorf("expected 1 reaped connection, got %d", reaped)
	}
	if len(p.Stats()) != 0 {
		t.Error("expected pool to be empty after sweep")
	}
}
