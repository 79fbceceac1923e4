// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package vpn

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleServers = `{
  "version": 1,
  "mullvad": {
    "version": 3,
    "timestamp": 1700000000,
    "servers": [
      {"vpn": "wireguard", "country": "Sweden", "city": "Stockholm", "hostname": "se-sto-wg-001", "ips": ["185.213.154.68", "2a03:1b20:3:f011::a01f"]},
      {"vpn": "openvpn", "country": "Germany", "city": "Berlin", "hostname": "de-ber-ovpn-001", "ips": ["193.32.248.66", "not-an-ip"]}
    ]
  },
  "nordvpn": {
    "version": 2,
    "timestamp": 1700000100,
    "servers": [
      {"country": "Netherlands", "hostname": "nl1.nordvpn.com", "ips": ["89.46.223.10"]}
    ]
  }
}`

func TestLoad(t *testing.T) {
	lookup, result, err := Load(strings.NewReader(sampleServers))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if result.Providers != 2 {
		t.Errorf("Providers = %d, want 2", result.Providers)
	}
	if result.Servers != 3 {
		t.Errorf("Servers = %d, want 3", result.Servers)
	}
	if result.IPs != 4 || result.Skipped != 1 {
		t.Errorf("IPs/Skipped = %d/%d, want 4/1", result.IPs, result.Skipped)
	}
	if lookup.Count() != 4 {
		t.Errorf("Count() = %d, want 4", lookup.Count())
	}
	if got := lookup.Providers(); len(got) != 2 || got[0] != "mullvad" || got[1] != "nordvpn" {
		t.Errorf("Providers() = %v, want [mullvad nordvpn]", got)
	}
}

func TestLookupIP(t *testing.T) {
	lookup, _, err := Load(strings.NewReader(sampleServers))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		ip       string
		provider string
		wantErr  bool
	}{
		{"ipv4 match", "185.213.154.68", "mullvad", false},
		{"ipv6 match", "2a03:1b20:3:f011::a01f", "mullvad", false},
		{"ipv4-mapped match", "::ffff:89.46.223.10", "nordvpn", false},
		{"no match", "8.8.8.8", "", false},
		{"invalid", "999.1.1.1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := lookup.LookupIP(tt.ip)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupIP(%q) error = %v, wantErr %v", tt.ip, err, tt.wantErr)
			}
			if tt.provider == "" {
				if m != nil {
					t.Errorf("LookupIP(%q) = %+v, want nil", tt.ip, m)
				}
				return
			}
			if m == nil || m.Provider != tt.provider {
				t.Errorf("LookupIP(%q) = %+v, want provider %s", tt.ip, m, tt.provider)
			}
		})
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	if _, _, err := Load(strings.NewReader("{not json")); err == nil {
		t.Error("Load() expected error for invalid JSON")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(path, []byte(sampleServers), 0o644); err != nil {
		t.Fatalf("write servers.json: %v", err)
	}

	lookup, _, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if lookup.Count() != 4 {
		t.Errorf("Count() = %d, want 4", lookup.Count())
	}

	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}
