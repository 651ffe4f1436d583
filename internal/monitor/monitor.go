package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"streamgate/internal/config"
	"streamgate/internal/domain"
	"streamgate/internal/metrics"
	"streamgate/internal/support"
)

// probeProxyFunc is swapped in tests so probe cycles run without network I/O.
var probeProxyFunc = probeProxy

type Registry interface {
	Snapshots() []domain.Proxy
	RecordProbe(proxyID uint64, success bool, latency time.Duration)
}

// Monitor periodically probes every known proxy through its own egress and
// feeds the results back into the registry. Disabled proxies are probed on a
// reduced cadence so they can earn their way back without burning bandwidth
// every cycle.
type Monitor struct {
	registry Registry
	cfg      config.MonitorConfig
	sem      *semaphore.Weighted
	cycle    uint64
}

func New(registry Registry, cfg config.MonitorConfig) *Monitor {
	concurrency := cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Monitor{
		registry: registry,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run blocks until ctx is cancelled, probing on every tick. The first cycle
// starts immediately so a freshly booted node does not serve on stale state
// for a full interval.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle probes the current proxy set once and waits for every probe of the
// cycle to finish before returning.
func (m *Monitor) RunCycle(ctx context.Context) {
	m.cycle++
	probeDisabled := m.cfg.DisabledProbeEvery <= 1 || m.cycle%uint64(m.cfg.DisabledProbeEvery) == 0

	proxies := m.registry.Snapshots()
	started := 0
	for _, proxy := range proxies {
		if proxy.Status == domain.StatusDisabled && !probeDisabled {
			continue
		}
		if err := m.sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++

		go func(p domain.Proxy) {
			defer m.sem.Release(1)
			m.probe(ctx, p)
		}(proxy)
	}

	// Wait for in-flight probes so registry state is settled before the
	// caller observes the cycle as complete.
	if err := m.sem.Acquire(ctx, int64(maxConcurrency(m.cfg.MaxConcurrent))); err == nil {
		m.sem.Release(int64(maxConcurrency(m.cfg.MaxConcurrent)))
	}

	log.Debug("Probe cycle finished", "cycle", m.cycle, "probed", started, "total", len(proxies), "disabled_included", probeDisabled)
}

func (m *Monitor) probe(ctx context.Context, proxy domain.Proxy) {
	latency, err := probeProxyFunc(ctx, proxy, m.cfg.ProbeURL, m.cfg.ProbeTimeout)
	if err != nil {
		m.registry.RecordProbe(proxy.ID, false, 0)
		metrics.ProbeResults.WithLabelValues("failure").Inc()
		log.Debug("Probe failed", "proxy", proxy.Address(), "error", err)
		return
	}

	m.registry.RecordProbe(proxy.ID, true, latency)
	metrics.ProbeResults.WithLabelValues("success").Inc()
}

func probeProxy(ctx context.Context, proxy domain.Proxy, probeURL string, timeout time.Duration) (time.Duration, error) {
	transport, err := support.CreateTransport(proxy, timeout)
	if err != nil {
		return 0, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0, fmt.Errorf("probe target answered %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

func maxConcurrency(configured int) int {
	if configured <= 0 {
		return 1
	}
	return configured
}
