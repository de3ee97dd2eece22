package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Opizontas-Studio/grpc-opizontas/internal/auth"
	gwerrors "github.com/Opizontas-Studio/grpc-opizontas/internal/errors"
	"github.com/Opizontas-Studio/grpc-opizontas/internal/metrics"
)

// SessionCloser lets the registry tell a live reverse session to close
// itself when expire_sweep finds it stale, without the registry importing
// the session package.
type SessionCloser interface {
	Close(reason error)
}

type instanceKey struct {
	kind Kind
	id   string // address for DirectAddress, connection id for ReverseSession
}

// Registry is the concurrent service registry described in spec.md §4.3.
type Registry struct {
	mu           sync.RWMutex
	validator    *auth.Validator
	instances    map[instanceKey]*ServiceInstance
	byService    map[string]map[instanceKey]struct{}
	byConnection map[string]instanceKey
	closers      map[string]SessionCloser

	changed chan struct{} // non-blocking change signal exposed through Changed()
}

// New builds an empty Registry backed by the given token validator.
func New(validator *auth.Validator) *Registry {
	return &Registry{
		validator:    validator,
		instances:    make(map[instanceKey]*ServiceInstance),
		byService:    make(map[string]map[instanceKey]struct{}),
		byConnection: make(map[string]instanceKey),
		closers:      make(map[string]SessionCloser),
		changed:      make(chan struct{}, 1),
	}
}

// Changed returns a channel that receives a value whenever the registry's
// instance set is mutated; sends are best-effort (no blocking the writer).
func (r *Registry) Changed() <-chan struct{} { return r.changed }

func (r *Registry) signalChanged() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

// RegisterDirect upserts a DirectAddress instance. Idempotent: registering
// the same (address, services) pair again replaces the prior entry and
// refreshes last_heartbeat.
func (r *Registry) RegisterDirect(token, address string, services []string) error {
	if !r.validator.Validate(token) {
		return gwerrors.ErrUnauthenticated
	}
	if len(services) == 0 {
		return gwerrors.ErrEmptyServices
	}
	services = dedupeServices(services)

	key := instanceKey{kind: KindDirectAddress, id: address}
	inst := &ServiceInstance{
		Address:       address,
		Services:      services,
		LastHeartbeat: time.Now(),
		Health:        HealthHealthy,
		Kind:          KindDirectAddress,
	}

	r.mu.Lock()
	r.removeLocked(key)
	r.insertLocked(key, inst)
	size := len(r.instances)
	r.mu.Unlock()
	metrics.RegistrySize.Set(float64(size))
	r.signalChanged()
	return nil
}

// RegisterSession installs a fresh ReverseSession instance and returns its
// newly minted connection id.
func (r *Registry) RegisterSession(token string, services []string) (string, error) {
	if !r.validator.Validate(token) {
		return "", gwerrors.ErrUnauthenticated
	}
	if len(services) == 0 {
		return "", gwerrors.ErrEmptyServices
	}
	services = dedupeServices(services)

	connID := uuid.New().String()
	key := instanceKey{kind: KindReverseSession, id: connID}
	inst := &ServiceInstance{
		Services:      services,
		ConnectionID:  connID,
		LastHeartbeat: time.Now(),
		Health:        HealthHealthy,
		Kind:          KindReverseSession,
	}

	r.mu.Lock()
	r.insertLocked(key, inst)
	r.byConnection[connID] = key
	size := len(r.instances)
	r.mu.Unlock()
	metrics.RegistrySize.Set(float64(size))
	r.signalChanged()
	return connID, nil
}

// SetSessionCloser lets the session layer register itself so ExpireSweep
// can signal it to close when its instance goes stale.
func (r *Registry) SetSessionCloser(connectionID string, closer SessionCloser) {
	r.mu.Lock()
	r.closers[connectionID] = closer
	r.mu.Unlock()
}

// Heartbeat refreshes last_heartbeat for a live connection id. An empty or
// non-matching id is ErrUnknownConnection and never rehomes from a service
// name (spec.md §4.3, §4.5).
func (r *Registry) Heartbeat(connectionID string) error {
	if connectionID == "" {
		return gwerrors.ErrUnknownConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byConnection[connectionID]
	if !ok {
		return gwerrors.ErrUnknownConnection
	}
	inst := r.instances[key]
	inst.LastHeartbeat = time.Now()
	inst.Health = HealthHealthy
	return nil
}

// Lookup returns one healthy instance serving serviceName. Reverse sessions
// are preferred over direct addresses; among equal kinds, the instance with
// the most recent heartbeat wins.
func (r *Registry) Lookup(serviceName string) (*ServiceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.byService[serviceName]
	var bestSession, bestDirect *ServiceInstance
	for k := range keys {
		inst := r.instances[k]
		if inst == nil || inst.Health == HealthUnhealthy {
			continue
		}
		switch inst.Kind {
		case KindReverseSession:
			if bestSession == nil || inst.LastHeartbeat.After(bestSession.LastHeartbeat) {
				bestSession = inst
			}
		case KindDirectAddress:
			if bestDirect == nil || inst.LastHeartbeat.After(bestDirect.LastHeartbeat) {
				bestDirect = inst
			}
		}
	}
	if bestSession != nil {
		return cloneInstance(bestSession), true
	}
	if bestDirect != nil {
		return cloneInstance(bestDirect), true
	}
	return nil, false
}

// RemoveSession removes a ReverseSession instance from the registry; called
// when a session reaches the Closed state.
func (r *Registry) RemoveSession(connectionID string) {
	r.mu.Lock()
	if key, ok := r.byConnection[connectionID]; ok {
		r.removeLocked(key)
	}
	delete(r.closers, connectionID)
	size := len(r.instances)
	r.mu.Unlock()
	metrics.RegistrySize.Set(float64(size))
	r.signalChanged()
}

// ExpireSweep removes every instance whose last heartbeat is older than
// timeout, signaling the owning session (if any) to close. Returns the
// number of instances reaped.
func (r *Registry) ExpireSweep(now time.Time, timeout time.Duration) int {
	var toClose []SessionCloser

	r.mu.Lock()
	var expired []instanceKey
	for k, inst := range r.instances {
		if now.Sub(inst.LastHeartbeat) > timeout {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		inst := r.instances[k]
		if inst.Kind == KindReverseSession {
			if c, ok := r.closers[inst.ConnectionID]; ok {
				toClose = append(toClose, c)
			}
		}
		r.removeLocked(k)
	}
	size := len(r.instances)
	r.mu.Unlock()
	metrics.RegistrySize.Set(float64(size))

	for _, c := range toClose {
		c.Close(gwerrors.ErrDeadlineExceeded)
	}
	if len(expired) > 0 {
		metrics.RegistryExpired.Add(float64(len(expired)))
		r.signalChanged()
	}
	return len(expired)
}

// Size returns the current instance count, for metrics.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// insertLocked and removeLocked must be called with r.mu held for writing.

func (r *Registry) insertLocked(key instanceKey, inst *ServiceInstance) {
	r.instances[key] = inst
	for _, svc := range inst.Services {
		name := bareServiceName(svc)
		set, ok := r.byService[name]
		if !ok {
			set = make(map[instanceKey]struct{})
			r.byService[name] = set
		}
		set[key] = struct{}{}
	}
}

func (r *Registry) removeLocked(key instanceKey) {
	inst, ok := r.instances[key]
	if !ok {
		return
	}
	for _, svc := range inst.Services {
		name := bareServiceName(svc)
		if set, ok := r.byService[name]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(r.byService, name)
			}
		}
	}
	if inst.Kind == KindReverseSession {
		delete(r.byConnection, inst.ConnectionID)
	}
	delete(r.instances, key)
}

// dedupeServices preserves first-seen order while dropping repeats, so a
// Register call listing the same service twice advertises it once.
func dedupeServices(services []string) []string {
	seen := make(map[string]struct{}, len(services))
	out := make([]string, 0, len(services))
	for _, svc := range services {
		if _, ok := seen[svc]; ok {
			continue
		}
		seen[svc] = struct{}{}
		out = append(out, svc)
	}
	return out
}

// bareServiceName returns the part of an advertised service name after its
// final ".", so "pkg.Foo" is indexed under "Foo", the key the router looks up.
func bareServiceName(svc string) string {
	return svc[strings.LastIndex(svc, ".")+1:]
}
