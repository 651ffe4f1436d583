package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"streamgate/internal/domain"
)

var ErrProxyExists = errors.New("proxy already exists")

func LoadProxies() ([]domain.Proxy, error) {
	if DB == nil {
		return nil, fmt.Errorf("proxy: database connection was not initialised")
	}

	var proxies []domain.Proxy
	if err := DB.Order("id").Find(&proxies).Error; err != nil {
		return nil, fmt.Errorf("proxy: load: %w", err)
	}
	return proxies, nil
}

func AddProxy(proxy domain.Proxy) (*domain.Proxy, error) {
	if DB == nil {
		return nil, fmt.Errorf("proxy: database connection was not initialised")
	}

	proxy.Protocol = strings.ToLower(strings.TrimSpace(proxy.Protocol))
	if !domain.SupportedProtocol(proxy.Protocol) {
		return nil, fmt.Errorf("proxy: unsupported protocol %q", proxy.Protocol)
	}

	result := DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "host"}, {Name: "port"}},
		DoNothing: true,
	}).Create(&proxy)
	if result.Error != nil {
		return nil, fmt.Errorf("proxy: create: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrProxyExists
	}
	return &proxy, nil
}

// SaveProxyStates writes back the health counters owned by the in-memory
// registry. Only the mutable health columns are touched.
func SaveProxyStates(proxies []domain.Proxy) error {
	if DB == nil {
		return fmt.Errorf("proxy: database connection was not initialised")
	}
	if len(proxies) == 0 {
		return nil
	}

	for _, proxy := range proxies {
		update := map[string]any{
			"status":               proxy.Status,
			"success_count":        proxy.SuccessCount,
			"failure_count":        proxy.FailureCount,
			"consecutive_failures": proxy.ConsecutiveFailures,
			"latency_ms":           proxy.LatencyMS,
			"last_checked_at":      proxy.LastCheckedAt,
		}
		if err := DB.Model(&domain.Proxy{}).Where("id = ?", proxy.ID).Updates(update).Error; err != nil {
			return fmt.Errorf("proxy: save state for %d: %w", proxy.ID, err)
		}
	}
	return nil
}

func InsertAccessLog(entry domain.AccessLog) error {
	if DB == nil {
		return fmt.Errorf("access log: database connection was not initialised")
	}
	if err := DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("access log: insert: %w", err)
	}
	return nil
}
