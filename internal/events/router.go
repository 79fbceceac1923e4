// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/scanner"
)

// Detector is the part of *detection.Filter the router feeds.
type Detector interface {
	Submit(client *models.Client)
	WantsLocation() bool
}

// Router consumes client events and triggers detection.
type Router struct {
	bus      *Bus
	detector Detector
	locator  scanner.Locator
	logger   watermill.LoggerAdapter

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRouter creates the event router. locator may be nil; when set, auth
// events are resolved locally and republished as geolocation events.
func NewRouter(bus *Bus, detector Detector, locator scanner.Locator, logger watermill.LoggerAdapter) (*Router, error) {
	if bus == nil || detector == nil {
		return nil, errors.New("event router requires a bus and a detector")
	}
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	return &Router{
		bus:      bus,
		detector: detector,
		locator:  locator,
		logger:   logger,
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once the router has subscribed to its topics for the
// first time.
func (r *Router) Ready() <-chan struct{} {
	return r.ready
}

// RunWithContext subscribes to the topics and processes events until ctx
// is canceled. A watermill router cannot be restarted, so each call builds
// a new one.
func (r *Router) RunWithContext(ctx context.Context) error {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, r.logger)
	if err != nil {
		return fmt.Errorf("create watermill router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	sub := r.bus.Subscriber()
	router.AddConsumerHandler("client-auth", TopicClientAuth, sub, r.handleClientAuth)
	router.AddConsumerHandler("geolocation-success", TopicGeolocationSuccess, sub, r.handleGeolocation)
	router.AddConsumerHandler("geolocation-failure", TopicGeolocationFailure, sub, r.handleGeolocation)

	go func() {
		select {
		case <-router.Running():
			r.readyOnce.Do(func() { close(r.ready) })
		case <-ctx.Done():
		}
	}()

	if err := router.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// handleClientAuth scans on auth unless a location-aware scanner is active.
// Malformed messages are acked; there is nothing to retry.
func (r *Router) handleClientAuth(msg *message.Message) error {
	ctx, event, err := decode(msg)
	if err != nil {
		r.logger.Error("Failed to parse client auth event", err, watermill.LogFields{"message_uuid": msg.UUID})
		return nil
	}
	client := event.Client

	if r.locator != nil {
		r.resolveLocation(ctx, &client)
	}

	if r.detector.WantsLocation() {
		logging.Ctx(ctx).Debug().Msgf("waiting for geolocation of %s before scanning", &client)
		return nil
	}
	r.detector.Submit(&client)
	return nil
}

// handleGeolocation scans once the location is known (or known to be
// unavailable), but only while a location-aware scanner is active.
func (r *Router) handleGeolocation(msg *message.Message) error {
	ctx, event, err := decode(msg)
	if err != nil {
		r.logger.Error("Failed to parse geolocation event", err, watermill.LogFields{"message_uuid": msg.UUID})
		return nil
	}
	if !r.detector.WantsLocation() {
		return nil
	}
	client := event.Client
	logging.Ctx(ctx).Debug().Bool("located", client.Location != nil).Msgf("geolocation resolved for %s", &client)
	r.detector.Submit(&client)
	return nil
}

// resolveLocation looks the client up with the local resolver and publishes
// the outcome as a geolocation event.
func (r *Router) resolveLocation(ctx context.Context, client *models.Client) {
	topic := TopicGeolocationSuccess
	located := *client
	if located.Location == nil {
		loc, err := r.locator.Locate(client.IP)
		switch {
		case err != nil:
			logging.Ctx(ctx).Warn().Err(err).Str("ip", client.IP).Msg("geolocation lookup failed")
			topic = TopicGeolocationFailure
		case loc == nil:
			topic = TopicGeolocationFailure
		default:
			located.Location = loc
		}
	}

	if err := r.bus.Publish(ctx, topic, ClientEvent{Client: located}); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("could not publish geolocation event")
	}
}
