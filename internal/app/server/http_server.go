package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"streamgate/internal/catalog"
	"streamgate/internal/config"
	"streamgate/internal/jobs/refresher"
	"streamgate/internal/metrics"
	"streamgate/internal/registry"
	"streamgate/internal/relay"
)

// Server is the HTTP edge: the client-facing /play relay endpoint plus the
// admin and observability surface.
type Server struct {
	cfg       config.Config
	registry  *registry.Registry
	catalog   *catalog.Catalog
	engine    *relay.Engine
	refresher *refresher.Refresher
	redis     *redis.Client
	startedAt time.Time
}

func New(cfg config.Config, reg *registry.Registry, cat *catalog.Catalog, engine *relay.Engine, refr *refresher.Refresher, redisClient *redis.Client) *Server {
	return &Server{
		cfg:       cfg,
		registry:  reg,
		catalog:   cat,
		engine:    engine,
		refresher: refr,
		redis:     redisClient,
		startedAt: time.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /play", s.playChannel)
	mux.HandleFunc("GET /play/{channel}", s.playChannel)

	mux.HandleFunc("GET /api/status", s.serverStatus)
	mux.HandleFunc("GET /api/proxies", s.listProxies)
	mux.HandleFunc("POST /api/proxies", s.createProxy)
	mux.HandleFunc("GET /api/sources", s.listSources)
	mux.HandleFunc("POST /api/sources", s.createSource)
	mux.HandleFunc("POST /api/sources/{id}/refresh", s.refreshSource)
	mux.HandleFunc("GET /api/channels", s.listChannels)

	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/graphql", s.graphqlHandler())

	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "port", s.cfg.Server.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
