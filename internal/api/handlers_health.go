// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version,omitempty"`
	DatabaseConnected bool    `json:"database_connected"`
	ActiveServices    int     `json:"active_services"`
	WebSocketClients  int     `json:"websocket_clients"`
	Uptime            float64 `json:"uptime_seconds"`
}

// Health reports liveness. The service is degraded, not down, when the
// database does not answer: detection keeps kicking without recording.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:  "healthy",
		Version: h.deps.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
	}

	if h.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		health.DatabaseConnected = h.deps.DB.Ping(ctx) == nil
		cancel()
	}
	if !health.DatabaseConnected {
		health.Status = "degraded"
	}
	for _, svc := range h.deps.Filter.Services() {
		if svc.Enabled {
			health.ActiveServices++
		}
	}
	if h.deps.Hub != nil {
		health.WebSocketClients = h.deps.Hub.GetClientCount()
	}

	respondSuccess(w, r, http.StatusOK, health)
}
