// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/validation"
)

// Services returns the catalog in configuration order with enabled flags.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.deps.Filter.Services())
}

// Stats returns the distinct detected addresses and per-service counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Store.Stats(r.Context())
	if err != nil {
		respondDatabaseError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, stats)
}

// detectionsQuery holds the query parameters of GET /detections.
type detectionsQuery struct {
	Services []string `json:"service" validate:"max=16,dive,keyword"`
	IP       string   `json:"ip" validate:"omitempty,ip"`
	Since    string   `json:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until    string   `json:"until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit    int      `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int      `json:"offset" validate:"gte=0"`
}

// Detections lists stored detections, newest first.
func (h *Handler) Detections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := detectionsQuery{IP: q.Get("ip"), Since: q.Get("since"), Until: q.Get("until")}
	for _, s := range q["service"] {
		for _, svc := range strings.Split(s, ",") {
			if svc = strings.TrimSpace(svc); svc != "" {
				params.Services = append(params.Services, svc)
			}
		}
	}
	var ok bool
	if params.Limit, ok = intParam(w, r, "limit", detection.DefaultListLimit); !ok {
		return
	}
	if params.Offset, ok = intParam(w, r, "offset", 0); !ok {
		return
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	filter := detection.ListFilter{
		Services: params.Services,
		IP:       params.IP,
		Since:    parseTime(params.Since),
		Until:    parseTime(params.Until),
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	records, err := h.deps.Store.ListDetections(r.Context(), filter)
	if err != nil {
		respondDatabaseError(w, r, err)
		return
	}
	respondSuccessWithMeta(w, r, http.StatusOK, records, &APIMeta{Pagination: &PaginationMeta{
		Count:   len(records),
		Offset:  params.Offset,
		Limit:   params.Limit,
		HasMore: params.Limit > 0 && len(records) == params.Limit,
	}})
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationError, name+" must be an integer", nil)
		return 0, false
	}
	return n, true
}

// parseTime parses an already validated RFC3339 value.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
