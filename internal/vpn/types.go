// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package vpn matches client IPs against known VPN server addresses.
//
// Server lists use the gluetun servers.json layout
// (https://github.com/qdm12/gluetun): a root object keyed by provider name,
// each provider holding a list of servers with their IPs. The root "version"
// key is an integer and is skipped.
package vpn

// GluetunProvider represents a provider's data in gluetun format.
type GluetunProvider struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Servers   []GluetunServer `json:"servers"`
}

// GluetunServer represents a server entry in gluetun format. Only the
// fields used for matching and reporting are decoded.
type GluetunServer struct {
	VPN      string   `json:"vpn,omitempty"`
	Country  string   `json:"country"`
	City     string   `json:"city,omitempty"`
	Hostname string   `json:"hostname,omitempty"`
	IPs      []string `json:"ips"`
}

// Match describes the VPN server an IP belongs to.
type Match struct {
	Provider string
	Country  string
	City     string
	Hostname string
}

// LoadResult summarizes one import.
type LoadResult struct {
	Providers int
	Servers   int
	IPs       int
	// Skipped counts server IPs that did not parse.
	Skipped int
}
