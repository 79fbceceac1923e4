// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package config

import "regexp"

// Message names.
const (
	MsgClientRejected     = "client_rejected"
	MsgProxyList          = "proxy_list"
	MsgStatsNoProxies     = "stats_no_proxies" // accepted, not printed by proxystats
	MsgStatsCountProxies  = "stats_count_proxies"
	MsgStatsDetailPattern = "stats_detail_pattern"
)

// Messages maps a message name to its template. Templates use $name or
// ${name} placeholders; "$$" is a literal dollar sign.
type Messages map[string]string

// DefaultMessages returns the built-in templates.
func DefaultMessages() Messages {
	return Messages{
		MsgClientRejected:     "^7$client has been ^1rejected^7: proxy detected",
		MsgProxyList:          "^7Proxy services: $services",
		MsgStatsNoProxies:     "^7No proxy have been detected till now",
		MsgStatsCountProxies:  "^7[^4$count^7] ^7proxy detected till now",
		MsgStatsDetailPattern: "^7[^4$count^7] ^7: ^3$service",
	}
}

var placeholder = regexp.MustCompile(`\$(?:\$|(\w+)|\{(\w+)\})`)

// Format renders the named template. Placeholders without a value are left
// untouched, and an unknown message name renders as "".
func (m Messages) Format(name string, vars map[string]string) string {
	tmpl, ok := m[name]
	if !ok {
		return ""
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		if match == "$$" {
			return "$"
		}
		sub := placeholder.FindStringSubmatch(match)
		key := sub[1]
		if key == "" {
			key = sub[2]
		}
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}
