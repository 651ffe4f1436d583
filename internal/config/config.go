package config

import (
	"sync"
	"time"

	"streamgate/internal/support"
)

type RelayConfig struct {
	MaxRetries   int
	ProxyTimeout time.Duration
}

type MonitorConfig struct {
	Interval           time.Duration
	ProbeTimeout       time.Duration
	ProbeURL           string
	DisabledProbeEvery int
	MaxConcurrent      int
}

type RegistryConfig struct {
	DisableThreshold int
	LatencyAlpha     float64
}

type SelectorConfig struct {
	SuccessWeight float64
	LatencyWeight float64
	Epsilon       float64
}

type CatalogConfig struct {
	RefreshSpec string
}

type ServerConfig struct {
	Port int
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type Config struct {
	Relay    RelayConfig
	Monitor  MonitorConfig
	Registry RegistryConfig
	Selector SelectorConfig
	Catalog  CatalogConfig
	Server   ServerConfig
	Redis    RedisConfig
}

var (
	once   sync.Once
	loaded Config
)

// GetConfig reads the environment once and caches the result for the lifetime
// of the process.
func GetConfig() Config {
	once.Do(func() {
		loaded = load()
	})
	return loaded
}

func load() Config {
	return Config{
		Relay: RelayConfig{
			MaxRetries:   support.GetEnvInt("MAX_RETRIES", 3),
			ProxyTimeout: time.Duration(support.GetEnvInt("PROXY_TIMEOUT", 15)) * time.Second,
		},
		Monitor: MonitorConfig{
			Interval:           time.Duration(support.GetEnvInt("VALIDATION_INTERVAL", 300)) * time.Second,
			ProbeTimeout:       time.Duration(support.GetEnvInt("PROBE_TIMEOUT", 15)) * time.Second,
			ProbeURL:           support.GetEnv("PROBE_URL", "https://httpbin.org/ip"),
			DisabledProbeEvery: support.GetEnvInt("DISABLED_PROBE_EVERY", 3),
			MaxConcurrent:      support.GetEnvInt("PROBE_MAX_CONCURRENT", 32),
		},
		Registry: RegistryConfig{
			DisableThreshold: support.GetEnvInt("DISABLE_THRESHOLD", 3),
			LatencyAlpha:     support.GetEnvFloat("LATENCY_EWMA_ALPHA", 0.3),
		},
		Selector: SelectorConfig{
			SuccessWeight: support.GetEnvFloat("SCORE_SUCCESS_WEIGHT", 0.7),
			LatencyWeight: support.GetEnvFloat("SCORE_LATENCY_WEIGHT", 0.3),
			Epsilon:       support.GetEnvFloat("SCORE_EPSILON", 0.05),
		},
		Catalog: CatalogConfig{
			RefreshSpec: support.GetEnv("SOURCE_REFRESH_SPEC", "@every 1h"),
		},
		Server: ServerConfig{
			Port: support.GetEnvInt("SERVER_PORT", 5051),
		},
		Redis: RedisConfig{
			Address:  support.GetEnv("REDIS_ADDRESS", ""),
			Password: support.GetEnv("REDIS_PASSWORD", ""),
			DB:       support.GetEnvInt("REDIS_DB", 0),
		},
	}
}
