// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/proxyguard/internal/commands"
)

// RunCommand executes an admin command on behalf of the player in the
// request and returns the response lines.
func (h *Handler) RunCommand(w http.ResponseWriter, r *http.Request) {
	var req commands.Request
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.deps.Commands.Execute(r.Context(), req)
	switch {
	case errors.Is(err, commands.ErrUnknownCommand):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)
	case errors.Is(err, commands.ErrInsufficientLevel):
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, err.Error(), nil)
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "command failed", nil)
	default:
		respondSuccess(w, r, http.StatusOK, resp)
	}
}

// ListCommands returns the registered commands.
func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.deps.Commands.Commands())
}
