package httpapi

import (
	"context"
	"net/http"
	"time"
)

// healthResponse mirrors the original service's liveness probe shape.
type healthResponse struct {
	Status           string `json:"status"`
	PostgresConnected bool   `json:"postgres_connected"`
	ActivePools      int    `json:"active_pools"`
	TotalConnections int64  `json:"total_connections"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	connected := s.Cache.AdminPool().Ping(ctx) == nil
	stats := s.Cache.Stats()

	status := "healthy"
	if !connected {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:            status,
		PostgresConnected: connected,
		ActivePools:       stats.ActivePools,
		TotalConnections:  stats.TotalConnections,
		UptimeSeconds:     int64(time.Since(s.StartedAt).Seconds()),
	})
}
