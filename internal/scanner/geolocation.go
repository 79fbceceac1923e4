// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// GeolocationScanner flags clients whose resolved country mentions "proxy"
// (MaxMind reports anonymous proxies as the "Anonymous Proxy" country).
//
// It only reads client.Location. Location data arrives through geolocation
// events; Scan never waits for it.
type GeolocationScanner struct {
	keyword string
	locator Locator
}

// NewGeolocationScanner requires a Locator so that clients actually get
// location data attached.
func NewGeolocationScanner(keyword string, locator Locator) (*GeolocationScanner, error) {
	if locator == nil {
		return nil, fmt.Errorf("%w: geolocation resolver", ErrMissingCollaborator)
	}
	return &GeolocationScanner{keyword: keyword, locator: locator}, nil
}

// Keyword implements Scanner.
func (s *GeolocationScanner) Keyword() string { return s.keyword }

// Kind implements Scanner.
func (s *GeolocationScanner) Kind() Kind { return KindGeolocation }

// Scan implements Scanner.
func (s *GeolocationScanner) Scan(ctx context.Context, client *models.Client) bool {
	start := time.Now()
	detected := false
	defer func() { metrics.RecordScan(s.keyword, detected, time.Since(start)) }()

	if client.Location == nil {
		logging.Ctx(ctx).Debug().Str("service", s.keyword).Stringer("client", client).
			Msg("no geolocation data available for client")
		return false
	}

	detected = strings.Contains(strings.ToLower(client.Location.Country), "proxy")
	return detected
}
