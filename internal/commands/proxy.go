// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package commands

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/logging"
)

// Fixed proxyservice replies. Color codes follow the game's ^N convention.
const (
	msgMissingData      = "^7missing data, try ^3!^7help proxyservice"
	msgInvalidData      = "^7invalid data, try ^3!^7help proxyservice"
	msgInvalidService   = "^7invalid service specified, try ^3!^7proxylist"
	msgAlreadyOn        = "^7proxy service ^3%s ^7is already ^2ON"
	msgNowOn            = "^7proxy service ^3%s ^7is now ^2ON"
	msgCannotStart      = "^7could not bring up proxy service ^1%s"
	msgCheckLog         = "^7check the log file for detailed information"
	msgAlreadyOff       = "^7proxy service ^3%s ^7is already ^1OFF"
	msgNowOff           = "^7proxy service ^3%s ^7is now ^1OFF"
	msgStatsUnavailable = "^7could not load proxy statistics, check the log file for detailed information"
)

var serviceToggle = regexp.MustCompile(`^(\w+)\s+(on|off)$`)

// proxyList lists the catalog, enabled services in green and disabled ones
// in red.
func (d *Dispatcher) proxyList(_ context.Context, _ string) []string {
	services := d.filter.Services()
	names := make([]string, 0, len(services))
	for _, svc := range services {
		color := "^1"
		if svc.Enabled {
			color = "^2"
		}
		names = append(names, color+svc.Keyword)
	}
	return []string{d.messages.Format(config.MsgProxyList, map[string]string{
		"services": strings.Join(names, "^7, "),
	})}
}

// proxyService handles "<service> <on|off>".
func (d *Dispatcher) proxyService(ctx context.Context, args string) []string {
	if args == "" {
		return []string{msgMissingData}
	}
	m := serviceToggle.FindStringSubmatch(args)
	if m == nil {
		return []string{msgInvalidData}
	}
	keyword, option := strings.ToLower(m[1]), m[2]
	if !d.filter.HasService(keyword) {
		return []string{msgInvalidService}
	}

	if option == "on" {
		status, err := d.filter.Enable(ctx, keyword)
		switch {
		case err != nil:
			return []string{fmt.Sprintf(msgCannotStart, keyword), msgCheckLog}
		case status == detection.StatusAlreadyOn:
			return []string{fmt.Sprintf(msgAlreadyOn, keyword)}
		default:
			return []string{fmt.Sprintf(msgNowOn, keyword)}
		}
	}

	status, err := d.filter.Disable(ctx, keyword)
	switch {
	case err != nil:
		// Only an unknown keyword fails, which HasService ruled out.
		logging.Ctx(ctx).Error().Err(err).Str("service", keyword).Msg("could not disable proxy service")
		return []string{msgInvalidService}
	case status == detection.StatusAlreadyOff:
		return []string{fmt.Sprintf(msgAlreadyOff, keyword)}
	default:
		return []string{fmt.Sprintf(msgNowOff, keyword)}
	}
}

// proxyStats reports the number of distinct detected addresses followed by
// one line per service.
func (d *Dispatcher) proxyStats(ctx context.Context, _ string) []string {
	total, err := d.stats.DistinctIPCount(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("could not count detected proxies")
		return []string{msgStatsUnavailable}
	}
	lines := []string{d.messages.Format(config.MsgStatsCountProxies, map[string]string{
		"count": strconv.FormatInt(total, 10),
	})}

	if total == 0 {
		return lines
	}

	counts, err := d.stats.CountByService(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("could not count detections by service")
		return append(lines, msgStatsUnavailable)
	}
	for _, c := range counts {
		lines = append(lines, d.messages.Format(config.MsgStatsDetailPattern, map[string]string{
			"count":   strconv.FormatInt(c.Total, 10),
			"service": c.Service,
		}))
	}
	return lines
}
