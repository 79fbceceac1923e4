// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
)

func newRawMessage(payload []byte) *message.Message {
	return message.NewMessage(uuid.NewString(), payload)
}

func TestBus_PublishCarriesCorrelationID(t *testing.T) {
	bus := NewBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := bus.Subscriber().Subscribe(ctx, TopicClientAuth)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	before := testutil.ToFloat64(metrics.EventsTotal.WithLabelValues(TopicClientAuth))
	pubCtx := logging.ContextWithCorrelationID(context.Background(), "abc12345")
	if err := bus.Publish(pubCtx, TopicClientAuth, ClientEvent{Client: fenix}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		gotCtx, event, err := decode(msg)
		if err != nil {
			t.Fatalf("decode() error = %v", err)
		}
		if event.Client.ID != fenix.ID || event.OccurredAt.IsZero() {
			t.Errorf("event = %+v", event)
		}
		if id := logging.CorrelationIDFromContext(gotCtx); id != "abc12345" {
			t.Errorf("correlation id = %q, want abc12345", id)
		}
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}

	if after := testutil.ToFloat64(metrics.EventsTotal.WithLabelValues(TopicClientAuth)); after != before+1 {
		t.Errorf("events counter = %v, want %v", after, before+1)
	}
}

func TestDecode_NewCorrelationID(t *testing.T) {
	msg := newRawMessage([]byte(`{"client":{"id":1,"ip":"10.0.0.1"}}`))
	ctx, event, err := decode(msg)
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if event.Client.IP != "10.0.0.1" {
		t.Errorf("client = %+v", event.Client)
	}
	if logging.CorrelationIDFromContext(ctx) == "" {
		t.Error("decode() should attach a fresh correlation id")
	}
}
