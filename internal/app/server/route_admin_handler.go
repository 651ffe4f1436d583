package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"streamgate/internal/api/dto"
	"streamgate/internal/database"
	"streamgate/internal/domain"
	"streamgate/internal/support"
)

func (s *Server) serverStatus(w http.ResponseWriter, _ *http.Request) {
	sources, err := database.ListSources()
	if err != nil {
		log.Debug("Status: source listing unavailable", "error", err)
	}

	writeJSON(w, http.StatusOK, dto.ServerStatus{
		Instance:      support.GetInstanceName(),
		Region:        support.GetInstanceRegion(),
		ActiveProxies: s.registry.ActiveCount(),
		TotalProxies:  len(s.registry.Snapshots()),
		Channels:      s.catalog.Len(),
		Sources:       len(sources),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) listProxies(w http.ResponseWriter, _ *http.Request) {
	snapshots := s.registry.Snapshots()

	stats := make([]dto.ProxyStats, 0, len(snapshots))
	for _, proxy := range snapshots {
		stats = append(stats, proxyStats(proxy))
	}

	writeJSON(w, http.StatusOK, dto.ProxyStatsPage{
		Proxies: stats,
		Active:  s.registry.ActiveCount(),
		Total:   len(snapshots),
	})
}

func (s *Server) createProxy(w http.ResponseWriter, r *http.Request) {
	var payload dto.ProxyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	host := strings.TrimSpace(payload.Host)
	if host == "" || payload.Port == 0 {
		writeError(w, "host and port are required", http.StatusBadRequest)
		return
	}

	proxy, err := database.AddProxy(domain.Proxy{
		Host:     host,
		Port:     payload.Port,
		Protocol: payload.Protocol,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		if errors.Is(err, database.ErrProxyExists) {
			writeError(w, "Proxy already exists", http.StatusConflict)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.registry.Add(*proxy)
	writeJSON(w, http.StatusCreated, proxyStats(*proxy))
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	sources, err := database.ListSources()
	if err != nil {
		writeError(w, "Failed to load sources", http.StatusInternalServerError)
		return
	}

	infos := make([]dto.SourceInfo, 0, len(sources))
	for _, source := range sources {
		infos = append(infos, sourceInfo(source))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": infos})
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var payload dto.SourceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(payload.Name)
	origin := strings.TrimSpace(payload.OriginURL)
	if name == "" || origin == "" {
		writeError(w, "name and origin_url are required", http.StatusBadRequest)
		return
	}

	enabled := true
	if payload.Enabled != nil {
		enabled = *payload.Enabled
	}
	priority := payload.Priority
	if priority == 0 {
		priority = 5
	}

	source, err := database.CreateSource(domain.Source{
		Name:      name,
		OriginURL: origin,
		Priority:  priority,
		Enabled:   enabled,
	})
	if err != nil {
		writeError(w, "Failed to create source", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, sourceInfo(*source))
}

func (s *Server) refreshSource(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimSpace(r.PathValue("id"))
	sourceID, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		writeError(w, "Invalid source id", http.StatusBadRequest)
		return
	}

	if err := s.refresher.RefreshSource(r.Context(), sourceID); err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			writeError(w, "Unknown source", http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	source, err := database.GetSourceByID(sourceID)
	if err != nil {
		writeError(w, "Failed to reload source", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sourceInfo(*source))
}

func (s *Server) listChannels(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalog.Channels()

	channels := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		channels = append(channels, map[string]any{
			"slug": entry.Slug,
			"name": entry.Name,
			"urls": len(entry.URLs),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func proxyStats(proxy domain.Proxy) dto.ProxyStats {
	return dto.ProxyStats{
		ID:                  proxy.ID,
		Address:             proxy.Address(),
		Protocol:            proxy.Protocol,
		Status:              proxy.Status,
		SuccessCount:        proxy.SuccessCount,
		FailureCount:        proxy.FailureCount,
		ConsecutiveFailures: proxy.ConsecutiveFailures,
		LatencyMS:           proxy.LatencyMS,
		LastCheckedAt:       proxy.LastCheckedAt,
	}
}

func sourceInfo(source domain.Source) dto.SourceInfo {
	return dto.SourceInfo{
		ID:              source.ID,
		Name:            source.Name,
		Priority:        source.Priority,
		Enabled:         source.Enabled,
		Status:          source.Status,
		ChannelCount:    source.ChannelCount,
		LastRefreshedAt: source.LastRefreshedAt,
		ErrorMessage:    source.ErrorMessage,
	}
}
