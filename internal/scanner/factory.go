// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/tomtom215/proxyguard/internal/config"
)

// Deps are the collaborators scanners may need. Zero values are allowed;
// strategies that require a missing collaborator fail to build.
type Deps struct {
	HTTPClient *http.Client
	Locator    Locator
	HTTPOpts   []HTTPOption
}

// New builds the scanner described by spec. settings is the detection
// configuration owned by the filter at the time of the call.
func New(spec Spec, settings config.Settings, deps Deps) (Scanner, error) {
	switch spec.Kind {
	case KindHTTP:
		opts := []HTTPOption{WithHTTPClient(deps.HTTPClient)}
		if spec.Rate > 0 {
			opts = append(opts, WithRateLimit(rate.Limit(spec.Rate), spec.Burst))
		}
		opts = append(opts, deps.HTTPOpts...)
		return built(NewHTTPLookupScanner(spec.Keyword, spec.URL, settings.Timeout, opts...))
	case KindGeolocation:
		return built(NewGeolocationScanner(spec.Keyword, deps.Locator))
	case KindVPNList:
		return built(NewVPNListScanner(spec.Keyword, spec.Path))
	case KindIP2Proxy:
		return built(NewIP2ProxyScanner(spec.Keyword, spec.Path))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

// built converts a constructor result to the interface without wrapping a
// nil pointer in a non-nil Scanner.
func built[T Scanner](s T, err error) (Scanner, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
