// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package models

import "testing"

func TestClient_String(t *testing.T) {
	tests := []struct {
		name   string
		client *Client
		want   string
	}{
		{"named", &Client{ID: 12, Name: "Fenix"}, "Fenix <@12>"},
		{"color codes kept", &Client{ID: 3, Name: "^1red"}, "^1red <@3>"},
		{"nil", nil, "<nil>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.client.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_WithLocationCopies(t *testing.T) {
	orig := Client{ID: 1, Name: "a", IP: "10.0.0.1"}
	loc := &Location{Country: "Italy", CountryCode: "IT"}

	got := orig.WithLocation(loc)
	if got.Location != loc {
		t.Errorf("Location = %v, want %v", got.Location, loc)
	}
	if orig.Location != nil {
		t.Error("WithLocation modified the receiver")
	}
}
