package registry

import (
	"sort"
	"sync"
	"time"

	"streamgate/internal/domain"
)

// Registry is the owner of record for proxy health state. Every counter and
// status mutation goes through RecordOutcome or RecordProbe; other components
// only ever see value copies.
type Registry struct {
	mu               sync.Mutex
	proxies          map[uint64]*domain.Proxy
	disableThreshold int
	latencyAlpha     float64
	dirty            map[uint64]struct{}
}

func New(disableThreshold int, latencyAlpha float64) *Registry {
	if disableThreshold <= 0 {
		disableThreshold = 3
	}
	if latencyAlpha <= 0 || latencyAlpha > 1 {
		latencyAlpha = 0.3
	}
	return &Registry{
		proxies:          make(map[uint64]*domain.Proxy),
		disableThreshold: disableThreshold,
		latencyAlpha:     latencyAlpha,
		dirty:            make(map[uint64]struct{}),
	}
}

// Load replaces the registry contents, normalising any status that disagrees
// with the persisted consecutive-failure count.
func (r *Registry) Load(proxies []domain.Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.proxies = make(map[uint64]*domain.Proxy, len(proxies))
	for i := range proxies {
		p := proxies[i]
		if p.Status == "" {
			p.Status = domain.StatusActive
		}
		if p.ConsecutiveFailures >= r.disableThreshold {
			p.Status = domain.StatusDisabled
		} else if p.Status == domain.StatusDisabled {
			p.Status = domain.StatusProbation
		}
		r.proxies[p.ID] = &p
	}
}

func (r *Registry) Add(p domain.Proxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Status == "" {
		p.Status = domain.StatusActive
	}
	r.proxies[p.ID] = &p
}

// ListActive returns copies of every ACTIVE proxy, ordered by ID.
func (r *Registry) ListActive() []domain.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]domain.Proxy, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p.Status == domain.StatusActive {
			active = append(active, *p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

// Snapshots returns copies of every known proxy regardless of status.
func (r *Registry) Snapshots() []domain.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]domain.Proxy, 0, len(r.proxies))
	for _, p := range r.proxies {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, p := range r.proxies {
		if p.Status == domain.StatusActive {
			count++
		}
	}
	return count
}

// RecordOutcome applies a relay-request result to a proxy. A success lifts a
// probation proxy back to active, but a disabled proxy stays out of rotation
// until a probe confirms it.
func (r *Registry) RecordOutcome(proxyID uint64, success bool, latency time.Duration) {
	r.apply(proxyID, success, latency, false)
}

// RecordProbe applies a health-probe result. A successful probe is the only
// path that returns a disabled proxy to active.
func (r *Registry) RecordProbe(proxyID uint64, success bool, latency time.Duration) {
	r.apply(proxyID, success, latency, true)
}

func (r *Registry) apply(proxyID uint64, success bool, latency time.Duration, viaProbe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proxies[proxyID]
	if !ok {
		return
	}

	now := time.Now().UTC()
	p.LastCheckedAt = &now

	if success {
		p.SuccessCount++
		p.ConsecutiveFailures = 0
		p.LatencyMS = r.updateLatency(p.LatencyMS, float64(latency.Milliseconds()))

		switch p.Status {
		case domain.StatusProbation:
			p.Status = domain.StatusActive
		case domain.StatusDisabled:
			if viaProbe {
				p.Status = domain.StatusActive
			} else {
				p.Status = domain.StatusProbation
			}
		}
	} else {
		p.FailureCount++
		p.ConsecutiveFailures++
		if p.ConsecutiveFailures >= r.disableThreshold {
			p.Status = domain.StatusDisabled
		}
	}

	r.dirty[p.ID] = struct{}{}
}

func (r *Registry) updateLatency(current, sample float64) float64 {
	if current <= 0 {
		return sample
	}
	return r.latencyAlpha*sample + (1-r.latencyAlpha)*current
}

// DrainDirty returns copies of every proxy touched since the previous drain,
// for periodic persistence.
func (r *Registry) DrainDirty() []domain.Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.dirty) == 0 {
		return nil
	}

	changed := make([]domain.Proxy, 0, len(r.dirty))
	for id := range r.dirty {
		if p, ok := r.proxies[id]; ok {
			changed = append(changed, *p)
		}
	}
	r.dirty = make(map[uint64]struct{})

	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	return changed
}
