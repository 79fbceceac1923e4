// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	_ "github.com/duckdb/duckdb-go/v2"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/proxyguard/internal/commands"
	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/database"
	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/events"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/scanner"
	"github.com/tomtom215/proxyguard/internal/websocket"
)

// loopbackScanner flags 127.0.0.2, the address the lookup providers
// report as a public proxy.
type loopbackScanner struct{ spec scanner.Spec }

func (s loopbackScanner) Keyword() string    { return s.spec.Keyword }
func (s loopbackScanner) Kind() scanner.Kind { return s.spec.Kind }
func (s loopbackScanner) Scan(_ context.Context, c *models.Client) bool {
	return c.IP == "127.0.0.2"
}

// TestEndToEnd_AuthEventRejectsProxy drives a client auth event through the
// HTTP API, the event bus and the filter, and checks the websocket notice
// and the statistics.
func TestEndToEnd_AuthEventRejectsProxy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.InitSchema(ctx, db); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	store := detection.NewDuckDBStore(db)

	hub := websocket.NewHub()
	go func() { _ = hub.RunWithContext(ctx) }()

	filter := detection.NewFilter(detection.Options{
		Settings:    config.Settings{MaxLevel: 40, Reason: config.DefaultReason, Timeout: time.Second},
		Services:    []config.Service{{Keyword: "winmxunlimited", Kind: config.KindHTTP, Enabled: true}},
		Recorder:    store,
		Broadcaster: hub,
		Build: func(spec scanner.Spec, _ config.Settings, _ scanner.Deps) (scanner.Scanner, error) {
			return loopbackScanner{spec: spec}, nil
		},
	})
	t.Cleanup(func() { _ = filter.Close() })
	filter.Start(ctx)

	bus := events.NewBus(watermill.NopLogger{})
	t.Cleanup(func() { _ = bus.Close() })
	router, err := events.NewRouter(bus, filter, nil, watermill.NopLogger{})
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = router.RunWithContext(ctx) }()
	<-router.Ready()

	dispatcher := commands.NewDispatcher(
		[]config.Command{{Name: "proxystats", Level: 80}}, filter, store, config.DefaultMessages(), nil)

	h := NewHandler(Deps{Bus: bus, Filter: filter, Commands: dispatcher, Store: store, Hub: hub})
	server := httptest.NewServer(NewRouter(h, nil, "").SetupChi())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	for deadline := time.Now().Add(2 * time.Second); hub.GetClientCount() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	post := func(path, body string) {
		t.Helper()
		resp, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("POST %s status = %d", path, resp.StatusCode)
		}
	}
	post("/api/v1/events/client-auth", `{"client":{"id":9,"name":"clean","ip":"10.1.1.1","level":1}}`)
	post("/api/v1/events/client-auth", `{"client":{"id":6,"name":"Fenix","ip":"127.0.0.2","level":1}}`)

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg struct {
		Type string                 `json:"type"`
		Data models.RejectionNotice `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("no rejection notice: %v", err)
	}
	if msg.Type != detection.BroadcastClientRejected || msg.Data.ClientID != 6 || msg.Data.Service != "winmxunlimited" {
		t.Errorf("notice = %+v", msg)
	}

	// The notice is sent after the record is stored.
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DistinctIPs != 1 || len(stats.Services) != 1 || stats.Services[0].Total != 1 {
		t.Errorf("stats = %+v", stats)
	}

	out, err := dispatcher.Execute(ctx, commands.Request{Command: "proxystats", Client: models.Client{ID: 1, IP: "10.0.0.1", Level: 100}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"^7[^41^7] ^7proxy detected till now", "^7[^41^7] ^7: ^3winmxunlimited"}
	if strings.Join(out.Lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("proxystats = %q, want %q", out.Lines, want)
	}
}
