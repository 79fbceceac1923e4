// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package events carries client lifecycle events from the HTTP API to the
// detection filter over an in-process Watermill pub/sub.
//
// Topics:
//   - client.auth: a client finished authenticating
//   - client.geolocation.success: a client's location was resolved
//   - client.geolocation.failure: a client's location could not be resolved
//
// The Router decides which of them triggers detection. When a scanner that
// reads locations is active the filter waits for a geolocation event, so the
// location is attached by the time the scan runs; otherwise it scans on auth.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// Topics.
const (
	TopicClientAuth         = "client.auth"
	TopicGeolocationSuccess = "client.geolocation.success"
	TopicGeolocationFailure = "client.geolocation.failure"
)

// Topics lists every topic the router consumes.
var Topics = []string{TopicClientAuth, TopicGeolocationSuccess, TopicGeolocationFailure}

const metadataCorrelationID = "correlation_id"

// ClientEvent is the payload of every topic.
type ClientEvent struct {
	Client     models.Client `json:"client"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Bus is the in-process publisher/subscriber.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a bus. Messages published while nobody is subscribed are
// dropped, so the router must be running before events are accepted.
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewSlogLogger(logging.NewSlogLogger())
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger),
	}
}

// Publish sends event on topic. The correlation id of ctx travels in the
// message metadata.
func (b *Bus) Publish(ctx context.Context, topic string, event ClientEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(metadataCorrelationID, id)
	}
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", topic, err)
	}
	metrics.RecordEvent(topic)
	return nil
}

// Subscriber returns the subscriber side for the router.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close shuts the bus down.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// decode reads a ClientEvent and returns a context carrying the message's
// correlation id.
func decode(msg *message.Message) (context.Context, *ClientEvent, error) {
	var event ClientEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, nil, err
	}
	ctx := msg.Context()
	if id := msg.Metadata.Get(metadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	} else {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	return ctx, &event, nil
}
