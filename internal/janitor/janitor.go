// Package janitor runs the gateway's single background sweep (C7): on
// every tick it expires stale registry entries then sweeps the connection
// pool. Grounded on the teacher's internal/cluster/cp/server.go
// staleNodeCleanup ticker and internal/proxy/tcp/conn_pool.go's cleanup
// ticker, unified into one goroutine per spec.md §4.7.
package janitor

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/logging"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/pool"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/registry"
)

// Janitor periodically reaps expired registry entries and pool connections.
type Janitor struct {
	registry         *registry.Registry
	pool             *pool.Pool
	interval         time.Duration
	heartbeatTimeout time.Duration
}

// New builds a Janitor. interval is pool.cleanup_interval_s;
// heartbeatTimeout is router.heartbeat_timeout_s.
func New(reg *registry.Registry, p *pool.Pool, interval, heartbeatTimeout time.Duration) *Janitor {
	return &Janitor{registry: reg, pool: p, interval: interval, heartbeatTimeout: heartbeatTimeout}
}

// Run blocks, ticking at interval ± up to 10% jitter, until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		wait := jittered(j.interval)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			j.tick()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (j *Janitor) tick() {
	reapedInstances := j.registry.ExpireSweep(time.Now(), j.heartbeatTimeout)
	reapedConns := j.pool.Sweep()
	if reapedInstances > 0 || reapedConns > 0 {
		logging.Debug("janitor sweep",
			zap.Int("expired_instances", reapedInstances),
			zap.Int("reaped_connections", reapedConns),
		)
	}
}

// jittered returns d adjusted by up to ±10%, recommended but not required
// by spec.md §4.7.
func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	delta := float64(d) * 0.1
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}
