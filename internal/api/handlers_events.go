// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package api

import (
	"net/http"

	"github.com/tomtom215/proxyguard/internal/events"
	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/models"
)

// ClientAuthRequest reports a client that finished authenticating.
type ClientAuthRequest struct {
	Client models.Client `json:"client" validate:"required"`
}

// GeolocationRequest reports the outcome of the host's geolocation lookup.
// Location is required when Success is true.
type GeolocationRequest struct {
	Client   models.Client    `json:"client" validate:"required"`
	Success  bool             `json:"success"`
	Location *models.Location `json:"location" validate:"required_if=Success true"`
}

// EventAccepted is returned once an event is queued.
type EventAccepted struct {
	Topic string `json:"topic"`
}

// ClientAuth queues a client auth event. Detection runs asynchronously.
func (h *Handler) ClientAuth(w http.ResponseWriter, r *http.Request) {
	var req ClientAuthRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	h.publish(w, r, events.TopicClientAuth, req.Client)
}

// Geolocation queues a geolocation success or failure event.
func (h *Handler) Geolocation(w http.ResponseWriter, r *http.Request) {
	var req GeolocationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	topic := events.TopicGeolocationFailure
	client := req.Client
	client.Location = nil
	if req.Success {
		topic = events.TopicGeolocationSuccess
		client.Location = req.Location
	}
	h.publish(w, r, topic, client)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request, topic string, client models.Client) {
	if err := h.deps.Bus.Publish(r.Context(), topic, events.ClientEvent{Client: client}); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("topic", topic).Msg("could not publish client event")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event bus unavailable", nil)
		return
	}
	respondSuccess(w, r, http.StatusAccepted, EventAccepted{Topic: topic})
}

// ScanRequest lists the clients currently connected to the server.
type ScanRequest struct {
	Clients []models.Client `json:"clients" validate:"required,min=1,max=128,dive"`
}

// ScanAccepted reports how many clients were queued for detection.
type ScanAccepted struct {
	Submitted int `json:"submitted"`
}

// ScanClients queues a detection run for every listed client.
func (h *Handler) ScanClients(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	clients := make([]*models.Client, len(req.Clients))
	for i := range req.Clients {
		clients[i] = &req.Clients[i]
	}
	n := h.deps.Filter.ScanConnected(clients)
	logging.Ctx(r.Context()).Info().Int("clients", n).Msg("rescanning connected clients")
	respondSuccess(w, r, http.StatusAccepted, ScanAccepted{Submitted: n})
}
