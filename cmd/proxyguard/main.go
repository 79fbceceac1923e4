// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Command proxyguard kicks game server clients that connect through a
// proxy, VPN or anonymizer.
//
// The host bot posts client auth and geolocation events to the HTTP API.
// Each event is run through the enabled proxy services; the first positive
// result is recorded in DuckDB, the client is kicked through the host's
// console callback and a notice is pushed to websocket viewers. Admin
// commands (proxylist, proxyservice, proxystats) are forwarded by the host
// to POST /api/v1/commands.
//
// # Configuration
//
// Service settings come from config.yaml and the environment (see
// internal/config). The detection catalog, command levels and chat messages
// come from the ini plugin file named by PLUGIN_CONFIG_PATH.
//
//	export CONSOLE_CALLBACK_URL=http://127.0.0.1:8341/console
//	export PLUGIN_CONFIG_PATH=/etc/proxyguard/plugin_proxyfilter.ini
//	export DUCKDB_PATH=/var/lib/proxyguard/proxyguard.duckdb
//	./proxyguard
//
// SIGINT and SIGTERM stop the supervisor tree, drain the HTTP server and
// close the scanners and the database.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tomtom215/proxyguard/internal/api"
	"github.com/tomtom215/proxyguard/internal/commands"
	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/console"
	"github.com/tomtom215/proxyguard/internal/database"
	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/events"
	"github.com/tomtom215/proxyguard/internal/geoip"
	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/scanner"
	"github.com/tomtom215/proxyguard/internal/supervisor"
	"github.com/tomtom215/proxyguard/internal/supervisor/services"
	ws "github.com/tomtom215/proxyguard/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("proxyguard stopped with an error")
	}
}

//nolint:gocyclo // sequential wiring
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	logging.Info().Str("version", version).Str("listen", cfg.Server.ListenAddr()).Msg("starting proxyguard")

	plugin, err := config.LoadPlugin(cfg.Plugin.Path)
	if err != nil {
		return err
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()
	store := detection.NewDuckDBStore(db.Conn())

	// Interfaces below only receive non-nil values.
	var locator scanner.Locator
	if cfg.GeoIP.DatabasePath != "" {
		resolver, err := geoip.Open(cfg.GeoIP.DatabasePath)
		if err != nil {
			logging.Warn().Err(err).Str("path", cfg.GeoIP.DatabasePath).Msg("geoip database unavailable, local geolocation disabled")
		} else {
			defer resolver.Close()
			locator = resolver
		}
	}

	var gameConsole detection.Console
	if c := console.New(cfg.Console); c.Enabled() {
		gameConsole = c
	} else {
		logging.Warn().Msg("no console callback configured, detected clients will be recorded but not kicked")
	}

	hub := ws.NewHub()

	filter := detection.NewFilter(detection.Options{
		Settings:    plugin.Settings,
		Messages:    plugin.Messages,
		Services:    plugin.Services,
		Recorder:    store,
		Console:     gameConsole,
		Broadcaster: hub,
		ScannerDeps: scanner.Deps{Locator: locator},
	})
	defer func() {
		if err := filter.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing proxy services")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	filter.Start(ctx)

	dispatcher := commands.NewDispatcher(plugin.Commands, filter, store, plugin.Messages, gameConsole)

	bus := events.NewBus(nil)
	defer bus.Close()
	router, err := events.NewRouter(bus, filter, locator, nil)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Bus:         bus,
		Filter:      filter,
		Commands:    dispatcher,
		Store:       store,
		DB:          db,
		Hub:         hub,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	})
	apiRouter := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server)), cfg.Server.APIToken)
	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           apiRouter.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewEventRouterService(router))

	// gochannel drops messages published before the router subscribes, so
	// the API only starts accepting events once it is ready.
	go func() {
		select {
		case <-router.Ready():
			tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
		case <-ctx.Done():
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := tree.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}
	logging.Info().Msg("proxyguard stopped")
	return nil
}
