// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package scanner implements the proxy detection strategies.
//
// Every strategy answers one question for a client: is this IP a proxy? All
// of them share the same failure policy. Provider outages, timeouts, bad
// payloads and unparsable addresses are logged and reported as "not
// detected"; Scan never returns an error and never panics, so one flaky
// provider cannot keep players out of the server.
//
// Strategies:
//   - HTTPLookupScanner: remote plain-text lookup API (winmxunlimited)
//   - GeolocationScanner: inspects location data already attached to the client
//   - VPNListScanner: gluetun VPN server list
//   - IP2ProxyScanner: local IP2Proxy BIN database
//
// Construction is the only place errors surface. A scanner that cannot be
// built (bad template, missing collaborator, unreadable data file) is never
// handed to the detection filter.
package scanner

import (
	"context"
	"errors"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/models"
)

// Kind identifies a scanning strategy.
type Kind string

// Supported kinds.
const (
	KindHTTP        Kind = config.KindHTTP
	KindGeolocation Kind = config.KindGeolocation
	KindVPNList     Kind = config.KindVPNList
	KindIP2Proxy    Kind = config.KindIP2Proxy
)

// Construction errors.
var (
	ErrUnknownKind         = errors.New("unknown scanner kind")
	ErrInvalidTemplate     = errors.New("url template must contain exactly one %s")
	ErrMissingCollaborator = errors.New("required collaborator is not available")
	ErrMissingPath         = errors.New("data file path is not configured")
)

// Scanner is one proxy detection strategy bound to a catalog keyword.
type Scanner interface {
	// Keyword is the catalog key this scanner was built for.
	Keyword() string
	// Kind is the strategy.
	Kind() Kind
	// Scan reports whether client connects through a proxy. Failures
	// report false.
	Scan(ctx context.Context, client *models.Client) bool
}

// Locator resolves client locations. The geolocation scanner requires one
// to exist so that location data will actually reach clients.
type Locator interface {
	Locate(ip string) (*models.Location, error)
}

// Spec is one catalog entry: the static description of a scanner.
type Spec struct {
	Keyword string `json:"keyword"`
	Kind    Kind   `json:"kind"`
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`

	// Rate and Burst set the provider quota of http lookups.
	Rate  float64 `json:"rate,omitempty"`
	Burst int     `json:"burst,omitempty"`
}

// SpecFromConfig converts a plugin config catalog entry.
func SpecFromConfig(svc config.Service) Spec {
	return Spec{
		Keyword: svc.Keyword,
		Kind:    Kind(svc.Kind),
		Enabled: svc.Enabled,
		URL:     svc.URL,
		Path:    svc.Path,
		Rate:    svc.Rate,
		Burst:   svc.Burst,
	}
}
