// Command server starts the streamgate relay service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"streamgate/internal/app/server"
	"streamgate/internal/catalog"
	"streamgate/internal/config"
	"streamgate/internal/database"
	"streamgate/internal/jobs/refresher"
	"streamgate/internal/jobs/runtime"
	"streamgate/internal/metrics"
	"streamgate/internal/monitor"
	"streamgate/internal/registry"
	"streamgate/internal/relay"
	"streamgate/internal/selector"
)

const proxyFlushInterval = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded", "error", err)
	}

	cfg := config.GetConfig()

	if _, err := database.SetupDB(); err != nil {
		log.Fatal("Database setup failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New(cfg.Registry.DisableThreshold, cfg.Registry.LatencyAlpha)
	proxies, err := database.LoadProxies()
	if err != nil {
		log.Fatal("Loading proxies failed", "error", err)
	}
	reg.Load(proxies)
	log.Info("Proxy registry loaded", "proxies", len(proxies), "active", reg.ActiveCount())
	metrics.RegisterActiveProxyGauge(reg.ActiveCount)

	cat := catalog.New()
	refr := refresher.New(cat, cfg.Relay.ProxyTimeout)
	if err := refr.LoadPersisted(ctx); err != nil {
		log.Warn("Catalog seed from database failed", "error", err)
	}
	log.Info("Channel catalog loaded", "channels", cat.Len())

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, running standalone", "error", err)
			redisClient = nil
		}
	}
	if redisClient != nil {
		catalog.EnableRedisSynchronization(ctx, redisClient, refr.LoadPersisted)
		stopHeartbeat := runtime.LaunchInstanceHeartbeat(ctx, redisClient, cfg.Server.Port)
		defer stopHeartbeat()
	}

	sel := selector.New(cat, reg,
		cfg.Selector.SuccessWeight, cfg.Selector.LatencyWeight, cfg.Selector.Epsilon,
		cfg.Relay.MaxRetries+1)
	engine := relay.NewEngine(sel, reg, cfg.Relay.ProxyTimeout)

	mon := monitor.New(reg, cfg.Monitor)
	go mon.Run(ctx)

	if err := refr.Start(ctx, cfg.Catalog.RefreshSpec); err != nil {
		log.Fatal("Source refresh scheduling failed", "error", err)
	}
	defer refr.Stop()

	go flushProxyStates(ctx, reg)

	srv := server.New(cfg, reg, cat, engine, refr, redisClient)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("HTTP server stopped", "error", err)
		os.Exit(1)
	}

	flushOnce(reg)
	log.Info("Shutdown complete")
}

// flushProxyStates periodically writes dirty registry counters back to the
// database so health survives a restart.
func flushProxyStates(ctx context.Context, reg *registry.Registry) {
	ticker := time.NewTicker(proxyFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushOnce(reg)
		}
	}
}

func flushOnce(reg *registry.Registry) {
	dirty := reg.DrainDirty()
	if len(dirty) == 0 {
		return
	}
	if err := database.SaveProxyStates(dirty); err != nil {
		log.Warn("Persisting proxy states failed", "proxies", len(dirty), "error", err)
	}
}
