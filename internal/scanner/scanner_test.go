// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/models"
)

type stubLocator struct{}

func (stubLocator) Locate(string) (*models.Location, error) {
	return &models.Location{Country: "Italy"}, nil
}

func TestGeolocationScanner(t *testing.T) {
	s, err := NewGeolocationScanner("geolocationplugin", stubLocator{})
	if err != nil {
		t.Fatalf("NewGeolocationScanner() error = %v", err)
	}

	tests := []struct {
		name     string
		location *models.Location
		want     bool
	}{
		{"no location", nil, false},
		{"regular country", &models.Location{Country: "Italy"}, false},
		{"anonymous proxy", &models.Location{Country: "Anonymous Proxy"}, true},
		{"case insensitive", &models.Location{Country: "PROXY server"}, true},
		{"satellite provider", &models.Location{Country: "Satellite Provider"}, false},
		{"empty country", &models.Location{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient("10.0.0.1")
			client.Location = tt.location
			if got := s.Scan(context.Background(), client); got != tt.want {
				t.Errorf("Scan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewGeolocationScanner_RequiresLocator(t *testing.T) {
	if _, err := NewGeolocationScanner("geolocationplugin", nil); !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("error = %v, want ErrMissingCollaborator", err)
	}
}

func TestVPNListScanner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	data := `{"version":1,"mullvad":{"version":1,"timestamp":1,"servers":[{"country":"Sweden","hostname":"se1","ips":["185.213.154.68"]}]}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write servers.json: %v", err)
	}

	s, err := NewVPNListScanner("vpnlist", path)
	if err != nil {
		t.Fatalf("NewVPNListScanner() error = %v", err)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"185.213.154.68", true},
		{"8.8.8.8", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		if got := s.Scan(context.Background(), testClient(tt.ip)); got != tt.want {
			t.Errorf("Scan(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestNewVPNListScanner_Errors(t *testing.T) {
	if _, err := NewVPNListScanner("vpnlist", ""); !errors.Is(err, ErrMissingPath) {
		t.Errorf("empty path error = %v, want ErrMissingPath", err)
	}
	if _, err := NewVPNListScanner("vpnlist", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

type fakeProxyDB struct {
	records map[string]proxyEntry
	err     error
}

func (f *fakeProxyDB) lookup(ip string) (proxyEntry, error) {
	if f.err != nil {
		return proxyEntry{}, f.err
	}
	return f.records[ip], nil
}

func TestIP2ProxyScanner_Scan(t *testing.T) {
	s := &IP2ProxyScanner{
		keyword: "ip2proxy",
		db: &fakeProxyDB{records: map[string]proxyEntry{
			"1.1.1.1": {Listed: true, ProxyType: "VPN", Provider: "NordVPN"},
			"2.2.2.2": {Listed: true, ProxyType: "-"},
			"4.4.4.4": {ProxyType: "PUB"},
		}},
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"1.1.1.1", true},
		{"2.2.2.2", false},
		{"3.3.3.3", false},
		{"4.4.4.4", false}, // not backed by a database row
	}
	for _, tt := range tests {
		if got := s.Scan(context.Background(), testClient(tt.ip)); got != tt.want {
			t.Errorf("Scan(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	s.db = &fakeProxyDB{err: errors.New("corrupt index")}
	if s.Scan(context.Background(), testClient("1.1.1.1")) {
		t.Error("Scan() with a lookup error should report not detected")
	}
}

func TestNewIP2ProxyScanner_Errors(t *testing.T) {
	if _, err := NewIP2ProxyScanner("ip2proxy", ""); !errors.Is(err, ErrMissingPath) {
		t.Errorf("empty path error = %v, want ErrMissingPath", err)
	}

	if _, err := NewIP2ProxyScanner("ip2proxy", filepath.Join(t.TempDir(), "missing.BIN")); err == nil {
		t.Error("missing database should fail")
	}

	// A zipped archive is rejected by the header check.
	path := filepath.Join(t.TempDir(), "IP2PROXY-LITE-PX1.BIN.zip")
	header := make([]byte, 64)
	header[0], header[1] = 'P', 'K'
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatalf("write database: %v", err)
	}
	if _, err := NewIP2ProxyScanner("ip2proxy", path); err == nil {
		t.Error("zipped database should fail")
	}
}

func TestNew(t *testing.T) {
	settings := config.Settings{MaxLevel: 40, Reason: config.DefaultReason, Timeout: 4 * time.Second}

	tests := []struct {
		name     string
		spec     Spec
		deps     Deps
		wantKind Kind
		wantErr  error
	}{
		{
			name:     "http",
			spec:     Spec{Keyword: "winmxunlimited", Kind: KindHTTP, URL: "http://127.0.0.1/?ip=%s"},
			wantKind: KindHTTP,
		},
		{
			name:    "http bad template",
			spec:    Spec{Keyword: "winmxunlimited", Kind: KindHTTP},
			wantErr: ErrInvalidTemplate,
		},
		{
			name:     "geolocation",
			spec:     Spec{Keyword: "geolocationplugin", Kind: KindGeolocation},
			deps:     Deps{Locator: stubLocator{}},
			wantKind: KindGeolocation,
		},
		{
			name:    "geolocation without locator",
			spec:    Spec{Keyword: "geolocationplugin", Kind: KindGeolocation},
			wantErr: ErrMissingCollaborator,
		},
		{
			name:    "vpnlist without path",
			spec:    Spec{Keyword: "vpnlist", Kind: KindVPNList},
			wantErr: ErrMissingPath,
		},
		{
			name:    "unknown kind",
			spec:    Spec{Keyword: "x", Kind: "dnsbl"},
			wantErr: ErrUnknownKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.spec, settings, tt.deps)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				if s != nil {
					t.Errorf("New() returned non-nil scanner %v alongside an error", s)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if s.Kind() != tt.wantKind || s.Keyword() != tt.spec.Keyword {
				t.Errorf("New() = %s/%s, want %s/%s", s.Keyword(), s.Kind(), tt.spec.Keyword, tt.wantKind)
			}
		})
	}
}

func TestSpecFromConfig(t *testing.T) {
	spec := SpecFromConfig(config.Service{Keyword: "vpnlist", Kind: config.KindVPNList, Enabled: true, Path: "/x.json"})
	if spec.Kind != KindVPNList || !spec.Enabled || spec.Path != "/x.json" {
		t.Errorf("SpecFromConfig() = %+v", spec)
	}

	spec = SpecFromConfig(config.Service{Keyword: "winmxunlimited", Kind: config.KindHTTP, Rate: 5, Burst: 10})
	if spec.Rate != 5 || spec.Burst != 10 {
		t.Errorf("SpecFromConfig() quota = %v/%d, want 5/10", spec.Rate, spec.Burst)
	}
}

func TestNew_HTTPQuota(t *testing.T) {
	settings := config.Settings{Timeout: time.Second}
	base := Spec{Keyword: "winmxunlimited", Kind: KindHTTP, URL: "http://127.0.0.1/?ip=%s"}

	s, err := New(base, settings, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.(*HTTPLookupScanner).limiter != nil {
		t.Error("spec without a rate built a throttled scanner")
	}

	quota := base
	quota.Rate, quota.Burst = 4, 6
	s, err = New(quota, settings, Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	limiter := s.(*HTTPLookupScanner).limiter
	if limiter == nil || limiter.Limit() != 4 || limiter.Burst() != 6 {
		t.Errorf("limiter = %v, want 4/s burst 6", limiter)
	}
}
