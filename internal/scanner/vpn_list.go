// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/vpn"
)

// VPNListScanner flags clients connecting from a known VPN server address.
type VPNListScanner struct {
	keyword string
	lookup  *vpn.Lookup
}

// NewVPNListScanner loads the gluetun servers.json at path.
func NewVPNListScanner(keyword, path string) (*VPNListScanner, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: set services/%s.path", ErrMissingPath, keyword)
	}
	lookup, result, err := vpn.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("service", keyword).Int("providers", result.Providers).
		Int("servers", result.Servers).Int("ips", result.IPs).Int("skipped", result.Skipped).
		Msg("loaded VPN server list")
	return &VPNListScanner{keyword: keyword, lookup: lookup}, nil
}

// Keyword implements Scanner.
func (s *VPNListScanner) Keyword() string { return s.keyword }

// Kind implements Scanner.
func (s *VPNListScanner) Kind() Kind { return KindVPNList }

// Scan implements Scanner.
func (s *VPNListScanner) Scan(ctx context.Context, client *models.Client) bool {
	start := time.Now()
	detected := false
	defer func() { metrics.RecordScan(s.keyword, detected, time.Since(start)) }()

	match, err := s.lookup.LookupIP(client.IP)
	if err != nil {
		metrics.RecordLookupError(s.keyword, "invalid_ip")
		logging.Ctx(ctx).Warn().Err(err).Str("service", s.keyword).Msg("cannot check client ip against VPN list")
		return false
	}
	if match == nil {
		return false
	}

	logging.Ctx(ctx).Debug().Str("service", s.keyword).Str("ip", client.IP).
		Str("provider", match.Provider).Str("server", match.Hostname).Msg("VPN server address detected")
	detected = true
	return true
}
