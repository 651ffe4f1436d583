package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamgate/internal/config"
	"streamgate/internal/domain"
	"streamgate/internal/registry"
)

type probeRecorder struct {
	mu      sync.Mutex
	results map[uint64]error
	probed  []uint64
}

func stubProbes(t *testing.T, rec *probeRecorder) {
	t.Helper()
	original := probeProxyFunc
	probeProxyFunc = func(_ context.Context, proxy domain.Proxy, _ string, _ time.Duration) (time.Duration, error) {
		rec.mu.Lock()
		rec.probed = append(rec.probed, proxy.ID)
		err := rec.results[proxy.ID]
		rec.mu.Unlock()
		if err != nil {
			return 0, err
		}
		return 120 * time.Millisecond, nil
	}
	t.Cleanup(func() {
		probeProxyFunc = original
	})
}

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		Interval:           time.Hour,
		ProbeTimeout:       time.Second,
		ProbeURL:           "http://probe.invalid/ip",
		DisabledProbeEvery: 3,
		MaxConcurrent:      4,
	}
}

func seedRegistry(t *testing.T, proxies ...domain.Proxy) *registry.Registry {
	t.Helper()
	reg := registry.New(3, 0.3)
	reg.Load(proxies)
	return reg
}

func (r *probeRecorder) count(proxyID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, id := range r.probed {
		if id == proxyID {
			total++
		}
	}
	return total
}

func TestRunCycleRecordsProbeResults(t *testing.T) {
	rec := &probeRecorder{results: map[uint64]error{
		2: errors.New("connect refused"),
	}}
	stubProbes(t, rec)

	reg := seedRegistry(t,
		domain.Proxy{ID: 1, Host: "10.0.0.1", Port: 8080, Status: domain.StatusActive},
		domain.Proxy{ID: 2, Host: "10.0.0.2", Port: 8080, Status: domain.StatusActive},
	)
	mon := New(reg, testMonitorConfig())
	mon.RunCycle(context.Background())

	snapshots := reg.Snapshots()
	byID := map[uint64]domain.Proxy{}
	for _, p := range snapshots {
		byID[p.ID] = p
	}

	if byID[1].SuccessCount != 1 || byID[1].LatencyMS != 120 {
		t.Fatalf("proxy 1 = %+v, want one recorded success at 120ms", byID[1])
	}
	if byID[2].FailureCount != 1 || byID[2].ConsecutiveFailures != 1 {
		t.Fatalf("proxy 2 = %+v, want one recorded failure", byID[2])
	}
}

func TestRunCycleSkipsDisabledUntilNthCycle(t *testing.T) {
	rec := &probeRecorder{results: map[uint64]error{}}
	stubProbes(t, rec)

	reg := seedRegistry(t,
		domain.Proxy{ID: 1, Host: "10.0.0.1", Port: 8080, Status: domain.StatusActive},
		domain.Proxy{ID: 2, Host: "10.0.0.2", Port: 8080, Status: domain.StatusDisabled, ConsecutiveFailures: 3},
	)
	mon := New(reg, testMonitorConfig())

	ctx := context.Background()
	mon.RunCycle(ctx)
	mon.RunCycle(ctx)
	if got := rec.count(2); got != 0 {
		t.Fatalf("disabled proxy probed %d times in cycles 1-2, want 0", got)
	}

	mon.RunCycle(ctx)
	if got := rec.count(2); got != 1 {
		t.Fatalf("disabled proxy probed %d times by cycle 3, want 1", got)
	}
	if got := rec.count(1); got != 3 {
		t.Fatalf("active proxy probed %d times, want every cycle", got)
	}
}

func TestProbeSuccessReactivatesDisabledProxy(t *testing.T) {
	rec := &probeRecorder{results: map[uint64]error{}}
	stubProbes(t, rec)

	reg := seedRegistry(t,
		domain.Proxy{ID: 7, Host: "10.0.0.7", Port: 8080, Status: domain.StatusDisabled, ConsecutiveFailures: 5},
	)
	cfg := testMonitorConfig()
	cfg.DisabledProbeEvery = 1
	mon := New(reg, cfg)
	mon.RunCycle(context.Background())

	snapshot := reg.Snapshots()[0]
	if snapshot.Status != domain.StatusActive {
		t.Fatalf("status = %q, want probe success to reactivate", snapshot.Status)
	}
	if snapshot.ConsecutiveFailures != 0 {
		t.Fatalf("consecutive failures = %d, want reset", snapshot.ConsecutiveFailures)
	}
}

func TestRunCycleStopsOnCancelledContext(t *testing.T) {
	rec := &probeRecorder{results: map[uint64]error{}}
	stubProbes(t, rec)

	reg := seedRegistry(t,
		domain.Proxy{ID: 1, Host: "10.0.0.1", Port: 8080, Status: domain.StatusActive},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mon := New(reg, testMonitorConfig())
	mon.RunCycle(ctx)

	if got := rec.count(1); got != 0 {
		t.Fatalf("probed %d proxies with a dead context, want 0", got)
	}
}
