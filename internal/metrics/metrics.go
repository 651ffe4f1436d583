package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_relay_requests_total",
		Help: "Relay requests by terminal outcome.",
	}, []string{"outcome"})

	RelayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_relay_attempts_total",
		Help: "Individual upstream attempts by result.",
	}, []string{"result"})

	RelayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_relay_bytes_total",
		Help: "Bytes streamed to clients.",
	})

	ProbeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_probe_total",
		Help: "Health probe results.",
	}, []string{"result"})

	CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_catalog_refresh_total",
		Help: "Source refresh operations by result.",
	}, []string{"result"})
)

// RegisterActiveProxyGauge exposes the registry's live active-proxy count.
func RegisterActiveProxyGauge(activeCount func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "streamgate_active_proxies",
		Help: "Proxies currently in ACTIVE state.",
	}, func() float64 {
		return float64(activeCount())
	}))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
