package dto

import "time"

type ProxyStats struct {
	ID                  uint64     `json:"id"`
	Address             string     `json:"address"`
	Protocol            string     `json:"protocol"`
	Status              string     `json:"status"`
	SuccessCount        uint64     `json:"success_count"`
	FailureCount        uint64     `json:"failure_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LatencyMS           float64    `json:"latency_ms"`
	LastCheckedAt       *time.Time `json:"last_checked_at,omitempty"`
}

type ProxyStatsPage struct {
	Proxies []ProxyStats `json:"proxies"`
	Active  int          `json:"active"`
	Total   int          `json:"total"`
}
