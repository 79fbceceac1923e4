// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package vpn

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"
)

// Lookup is an exact-match index of VPN server IPs.
type Lookup struct {
	mu        sync.RWMutex
	addrs     map[netip.Addr]*Match
	providers map[string]int
}

// NewLookup creates an empty lookup.
func NewLookup() *Lookup {
	return &Lookup{
		addrs:     make(map[netip.Addr]*Match),
		providers: make(map[string]int),
	}
}

// LookupIP returns the VPN server ipStr belongs to, or nil when it is not a
// known VPN address. An unparsable IP is an error.
func (l *Lookup) LookupIP(ipStr string) (*Match, error) {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ip %q: %w", ipStr, err)
	}
	// IPv4-mapped IPv6 addresses are indexed in their IPv4 form.
	addr = addr.Unmap()

	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.addrs[addr]
	if !ok {
		return nil, nil
	}
	matchCopy := *m
	return &matchCopy, nil
}

// add indexes one server. It returns how many of its IPs were accepted.
func (l *Lookup) add(provider string, server *GluetunServer) (added, skipped int) {
	m := &Match{
		Provider: provider,
		Country:  server.Country,
		City:     server.City,
		Hostname: server.Hostname,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ipStr := range server.IPs {
		addr, err := netip.ParseAddr(ipStr)
		if err != nil {
			skipped++
			continue
		}
		l.addrs[addr.Unmap()] = m
		added++
	}
	l.providers[provider] += added
	return added, skipped
}

// Count returns the number of indexed IPs.
func (l *Lookup) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addrs)
}

// Providers returns the provider names with at least one indexed IP, sorted.
func (l *Lookup) Providers() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.providers))
	for name, n := range l.providers {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
