package dto

import "time"

type ServerStatus struct {
	Instance      string `json:"instance"`
	Region        string `json:"region"`
	ActiveProxies int    `json:"active_proxies"`
	TotalProxies  int    `json:"total_proxies"`
	Channels      int    `json:"channels"`
	Sources       int    `json:"sources"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type SourceInfo struct {
	ID              uint64     `json:"id"`
	Name            string     `json:"name"`
	Priority        int        `json:"priority"`
	Enabled         bool       `json:"enabled"`
	Status          string     `json:"status"`
	ChannelCount    int        `json:"channel_count"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

type SourceCreateRequest struct {
	Name      string `json:"name"`
	OriginURL string `json:"origin_url"`
	Priority  int    `json:"priority"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

type ProxyCreateRequest struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}
