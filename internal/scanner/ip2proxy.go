// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pg9182/ip2x"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// proxyEntry is the part of an IP2Proxy record the scanner reads. Listed is
// false when the address is not covered by any database row.
type proxyEntry struct {
	Listed    bool
	ProxyType string
	Provider  string
}

// proxyDB looks addresses up in an IP2Proxy database.
type proxyDB interface {
	lookup(ip string) (proxyEntry, error)
}

// binDB adapts *ip2x.DB.
type binDB struct {
	db *ip2x.DB
}

func (b binDB) lookup(ip string) (proxyEntry, error) {
	rec, err := b.db.LookupString(ip)
	if err != nil || !rec.IsValid() {
		return proxyEntry{}, err
	}
	entry := proxyEntry{Listed: true}
	entry.ProxyType, _ = rec.Get(ip2x.ProxyType).(string)
	entry.Provider, _ = rec.Get(ip2x.Provider).(string)
	return entry, nil
}

// IP2ProxyScanner flags clients listed in an IP2Proxy BIN database.
// A record counts as a proxy when its ProxyType is set and is not "-".
type IP2ProxyScanner struct {
	keyword string
	db      proxyDB
	closer  io.Closer
}

// NewIP2ProxyScanner opens the BIN database at path.
func NewIP2ProxyScanner(keyword, path string) (*IP2ProxyScanner, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: set services/%s.path", ErrMissingPath, keyword)
	}
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the plugin config
	if err != nil {
		return nil, fmt.Errorf("failed to open IP2Proxy database: %w", err)
	}
	db, err := ip2x.New(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read IP2Proxy database %s: %w", path, err)
	}
	logging.Info().Str("service", keyword).Str("version", db.Version()).Msg("loaded IP2Proxy database")
	return &IP2ProxyScanner{keyword: keyword, db: binDB{db: db}, closer: f}, nil
}

// Keyword implements Scanner.
func (s *IP2ProxyScanner) Keyword() string { return s.keyword }

// Kind implements Scanner.
func (s *IP2ProxyScanner) Kind() Kind { return KindIP2Proxy }

// Scan implements Scanner.
func (s *IP2ProxyScanner) Scan(ctx context.Context, client *models.Client) bool {
	start := time.Now()
	detected := false
	defer func() { metrics.RecordScan(s.keyword, detected, time.Since(start)) }()

	rec, err := s.db.lookup(client.IP)
	if err != nil {
		metrics.RecordLookupError(s.keyword, "lookup")
		logging.Ctx(ctx).Warn().Err(err).Str("service", s.keyword).Str("ip", client.IP).Msg("IP2Proxy lookup failed")
		return false
	}
	if !rec.Listed || rec.ProxyType == "" || rec.ProxyType == "-" {
		return false
	}

	logging.Ctx(ctx).Debug().Str("service", s.keyword).Str("ip", client.IP).
		Str("proxy_type", rec.ProxyType).Str("provider", rec.Provider).Msg("IP2Proxy listed address detected")
	detected = true
	return true
}

// Close releases the database file.
func (s *IP2ProxyScanner) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
