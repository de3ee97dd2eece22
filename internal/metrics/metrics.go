// Package metrics exposes the gateway's Prometheus surface (A5): registry
// size, pool occupancy, and router outcomes. New relative to the teacher
// (wudi-gateway has no metrics package of its own) but grounded on the
// third-party stack go.mod already carries for this purpose
// (prometheus/client_golang), matching how the rest of the retrieval pack
// (e.g. tectonic-chproxy's proxy.go) labels its counters by outcome.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gateway"

var (
	// RegistrySize reports the current instance count, updated on every
	// registry mutation (register/remove/expire).
	RegistrySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "instances",
		Help:      "Number of registered service instances.",
	})

	// RegistryExpired counts instances reaped by the janitor's ExpireSweep.
	RegistryExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "expired_total",
		Help:      "Total service instances expired for missed heartbeats.",
	})

	// PoolConnections reports the current pooled outbound connection count.
	PoolConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "connections",
		Help:      "Number of pooled outbound connections.",
	})

	// PoolEvicted counts connections closed by TTL/idle sweep or LRU eviction.
	PoolEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "evicted_total",
		Help:      "Total pooled connections closed by sweep or eviction.",
	})

	// ForwardedRequests counts forwarded RPCs by backend kind and outcome.
	ForwardedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "forwarded_total",
		Help:      "Total forwarded requests by instance kind and outcome.",
	}, []string{"kind", "outcome"})

	// ForwardLatency observes forwarding latency in seconds by instance kind.
	ForwardLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "forward_latency_seconds",
		Help:      "Forwarding latency in seconds by instance kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

// ObserveForward records the outcome and latency of one forwarded request.
func ObserveForward(kind, outcome string, seconds float64) {
	ForwardedRequests.WithLabelValues(kind, outcome).Inc()
	ForwardLatency.WithLabelValues(kind).Observe(seconds)
}
