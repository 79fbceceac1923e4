// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package detection

import (
	"context"
	"errors"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/scanner"
)

// Filter errors.
var (
	// ErrUnknownService is returned for a keyword that is not in the catalog.
	ErrUnknownService = errors.New("unknown proxy service")

	// ErrActivation wraps the construction error of a scanner that could
	// not be enabled.
	ErrActivation = errors.New("could not activate proxy service")
)

// ToggleStatus is the outcome of Enable or Disable.
type ToggleStatus string

const (
	StatusOn         ToggleStatus = "on"
	StatusAlreadyOn  ToggleStatus = "already_on"
	StatusOff        ToggleStatus = "off"
	StatusAlreadyOff ToggleStatus = "already_off"
)

// BroadcastClientRejected is the websocket message type sent on a kick.
const BroadcastClientRejected = "client_rejected"

// Recorder persists confirmed detections. SaveDetection sets record.ID.
type Recorder interface {
	SaveDetection(ctx context.Context, record *models.DetectionRecord) error
}

// Console is the host bot's remote console.
type Console interface {
	// Kick removes client from the server. Silent kicks are not announced
	// by the host.
	Kick(ctx context.Context, client *models.Client, reason string, silent bool) error
	// Say broadcasts msg to every player.
	Say(ctx context.Context, msg string) error
	// Message sends msg privately to client.
	Message(ctx context.Context, client *models.Client, msg string) error
}

// Broadcaster pushes notifications to dashboard websocket clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// BuildFunc builds a scanner for a catalog entry. scanner.New in production.
type BuildFunc func(spec scanner.Spec, settings config.Settings, deps scanner.Deps) (scanner.Scanner, error)

// ServiceInfo is the public view of one catalog entry.
type ServiceInfo struct {
	Keyword string       `json:"keyword"`
	Kind    scanner.Kind `json:"kind"`
	Enabled bool         `json:"enabled"`
}
