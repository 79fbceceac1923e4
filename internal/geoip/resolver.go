// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package geoip resolves client locations from a local MaxMind database.
//
// Both City and Country editions are accepted; the edition is read from the
// database metadata. Addresses MaxMind flags as anonymous proxies resolve to
// the legacy "Anonymous Proxy" country, which is what the geolocation scanner
// looks for.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/tomtom215/proxyguard/internal/models"
)

// AnonymousProxyCountry is the country reported for anonymous proxies.
const AnonymousProxyCountry = "Anonymous Proxy"

// ErrInvalidIP is returned for addresses that do not parse.
var ErrInvalidIP = errors.New("invalid ip address")

// Resolver looks up locations in a GeoIP2/GeoLite2 database. It is safe for
// concurrent use.
type Resolver struct {
	reader *geoip2.Reader
	city   bool
}

// Open opens the mmdb file at path.
func Open(path string) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &Resolver{
		reader: reader,
		city:   strings.Contains(reader.Metadata().DatabaseType, "City"),
	}, nil
}

// Locate resolves ip to a location.
func (r *Resolver) Locate(ip string) (*models.Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}

	if r.city {
		record, err := r.reader.City(parsed)
		if err != nil {
			return nil, fmt.Errorf("GeoIP lookup failed: %w", err)
		}
		return fromCity(record), nil
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		return nil, fmt.Errorf("GeoIP lookup failed: %w", err)
	}
	return fromCountry(record), nil
}

// Close releases the database.
func (r *Resolver) Close() error {
	return r.reader.Close()
}

func fromCity(record *geoip2.City) *models.Location {
	loc := &models.Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Latitude:    record.Location.Latitude,
		Longitude:   record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if record.Traits.IsAnonymousProxy {
		loc.Country = AnonymousProxyCountry
	}
	return loc
}

func fromCountry(record *geoip2.Country) *models.Location {
	loc := &models.Location{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
	}
	if record.Traits.IsAnonymousProxy {
		loc.Country = AnonymousProxyCountry
	}
	return loc
}
