// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package vpn

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/tomtom215/proxyguard/internal/logging"
)

// LoadFile builds a lookup from a gluetun servers.json file.
func LoadFile(filename string) (*Lookup, *LoadResult, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: filename comes from the plugin config
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open VPN server list: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Str("filename", filename).Msg("Error closing VPN file")
		}
	}()

	return Load(file)
}

// Load builds a lookup from gluetun JSON.
func Load(r io.Reader) (*Lookup, *LoadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read data: %w", err)
	}

	// The root "version" field is an int while providers are objects.
	var rawData map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawData); err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	lookup := NewLookup()
	result := &LoadResult{}

	for providerName, rawProvider := range rawData {
		if providerName == "version" {
			continue
		}

		var provider GluetunProvider
		if err := json.Unmarshal(rawProvider, &provider); err != nil {
			logging.Debug().Str("provider", providerName).Err(err).Msg("skipping entry that is not a provider")
			continue
		}

		for i := range provider.Servers {
			added, skipped := lookup.add(providerName, &provider.Servers[i])
			result.IPs += added
			result.Skipped += skipped
			result.Servers++
		}
		result.Providers++
	}

	return lookup, result, nil
}
