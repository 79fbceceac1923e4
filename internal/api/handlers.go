// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package api is the HTTP surface the host bot talks to: it receives client
// events and admin commands, and exposes the service catalog, detection
// statistics and a websocket stream of rejections.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/proxyguard/internal/commands"
	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/events"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/validation"
	"github.com/tomtom215/proxyguard/internal/websocket"
)

const maxBodyBytes = 64 << 10

// Publisher is the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event events.ClientEvent) error
}

// Filter is the part of *detection.Filter the API reads and drives.
type Filter interface {
	Services() []detection.ServiceInfo
	ScanConnected(clients []*models.Client) int
}

// CommandRunner is *commands.Dispatcher.
type CommandRunner interface {
	Execute(ctx context.Context, req commands.Request) (*commands.Response, error)
	Commands() []commands.Info
}

// DetectionStore is the read side of *detection.DuckDBStore.
type DetectionStore interface {
	Stats(ctx context.Context) (*models.DetectionStats, error)
	ListDetections(ctx context.Context, filter detection.ListFilter) ([]models.DetectionRecord, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the handlers. Hub and DB may be nil.
type Deps struct {
	Bus         Publisher
	Filter      Filter
	Commands    CommandRunner
	Store       DetectionStore
	DB          Pinger
	Hub         *websocket.Hub
	CORSOrigins []string
	Version     string
}

// Handler serves the API endpoints.
type Handler struct {
	deps      Deps
	startTime time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes
// the error response itself and reports whether the handler may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large", nil)
		case errors.Is(err, io.EOF):
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "request body is empty", nil)
		default:
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", nil)
		}
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
