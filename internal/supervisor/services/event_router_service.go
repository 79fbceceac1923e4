// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package services

import (
	"context"
)

// EventRouter is satisfied by *events.Router.
type EventRouter interface {
	RunWithContext(ctx context.Context) error
}

// EventRouterService supervises the client event router.
type EventRouterService struct {
	router EventRouter
	name   string
}

func NewEventRouterService(router EventRouter) *EventRouterService {
	return &EventRouterService{router: router, name: "event-router"}
}

func (e *EventRouterService) Serve(ctx context.Context) error {
	return e.router.RunWithContext(ctx)
}

func (e *EventRouterService) String() string {
	return e.name
}
