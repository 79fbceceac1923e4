// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package models

import "time"

// DetectionRecord is one row of the proxies table: client ClientID was
// flagged by scanner Service while connecting from IP. Records are appended
// once per confirmed detection and never modified.
type DetectionRecord struct {
	ID       int64     `json:"id"`
	ClientID int64     `json:"client_id"`
	Service  string    `json:"service"`
	IP       string    `json:"ip"`
	TimeAdd  time.Time `json:"time_add"`
}

// ServiceCount is the number of detections attributed to one scanner.
type ServiceCount struct {
	Service string `json:"service"`
	Total   int64  `json:"total"`
}

// DetectionStats aggregates the proxies table.
type DetectionStats struct {
	// DistinctIPs is COUNT(DISTINCT ip).
	DistinctIPs int64 `json:"distinct_ips"`

	// Services is ordered by service name ascending.
	Services []ServiceCount `json:"services"`
}

// RejectionNotice is broadcast to dashboard websocket clients when a client
// is kicked.
type RejectionNotice struct {
	ClientID   int64     `json:"client_id"`
	ClientName string    `json:"client_name"`
	IP         string    `json:"ip"`
	Service    string    `json:"service"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
