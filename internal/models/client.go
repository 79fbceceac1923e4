// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package models holds the data types shared between the scanners, the
// detection filter, the command layer and the HTTP API.
package models

import "fmt"

// Client is a player connected to the game server, as reported by the host
// bot. Proxyguard never owns clients; it only reads them and asks the host to
// kick them.
type Client struct {
	// ID is the host's database id for the client.
	ID int64 `json:"id" validate:"gte=0"`

	// Name is the current display name, possibly containing color codes.
	Name string `json:"name" validate:"max=64"`

	// IP is the address the client connected from.
	IP string `json:"ip" validate:"required,ip"`

	// Level is the highest group level the client belongs to.
	Level int `json:"level" validate:"gte=0,lte=100"`

	// Location is set once geolocation has been resolved. Nil means the data
	// is not available (not resolved yet, or resolution failed).
	Location *Location `json:"location,omitempty"`
}

// String formats the client the way log lines and console messages refer
// to it: "Name <@id>".
func (c *Client) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s <@%d>", c.Name, c.ID)
}

// WithLocation returns a copy of c with loc attached.
func (c Client) WithLocation(loc *Location) *Client {
	c.Location = loc
	return &c
}

// Location is the geolocation data resolved for a client IP.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code,omitempty"`
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}
