// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package detection

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/scanner"
)

// Options configures a Filter.
type Options struct {
	Settings config.Settings
	Messages config.Messages

	// Services is the catalog in configuration order. Entries with Enabled
	// set are activated by Start.
	Services []config.Service

	Recorder    Recorder
	Console     Console
	Broadcaster Broadcaster // optional

	// ScannerDeps are handed to Build for every activation.
	ScannerDeps scanner.Deps
	// Build defaults to scanner.New.
	Build BuildFunc
}

// Filter is the detection orchestrator. It owns the scanner catalog and
// the registry of active scanner instances, and runs detection for
// connecting clients.
//
// The catalog is fixed at construction; entries are toggled, never added
// or removed. A detection run works on a snapshot of the active scanners
// taken when it starts.
type Filter struct {
	settings    config.Settings
	messages    config.Messages
	recorder    Recorder
	console     Console
	broadcaster Broadcaster
	deps        scanner.Deps
	build       BuildFunc

	wanted []string

	mu      sync.RWMutex
	order   []string
	catalog map[string]*scanner.Spec
	active  map[string]scanner.Scanner
}

// NewFilter creates a filter with every catalog entry disabled. Call Start
// to activate the configured ones.
func NewFilter(opts Options) *Filter {
	f := &Filter{
		settings:    opts.Settings,
		messages:    opts.Messages,
		recorder:    opts.Recorder,
		console:     opts.Console,
		broadcaster: opts.Broadcaster,
		deps:        opts.ScannerDeps,
		build:       opts.Build,
		catalog:     make(map[string]*scanner.Spec, len(opts.Services)),
		active:      make(map[string]scanner.Scanner),
	}
	if f.build == nil {
		f.build = scanner.New
	}
	if f.messages == nil {
		f.messages = config.DefaultMessages()
	}

	for _, svc := range opts.Services {
		if _, dup := f.catalog[svc.Keyword]; dup {
			logging.Warn().Str("service", svc.Keyword).Msg("duplicate proxy service in catalog, keeping the first")
			continue
		}
		spec := scanner.SpecFromConfig(svc)
		spec.Enabled = false
		f.catalog[spec.Keyword] = &spec
		f.order = append(f.order, spec.Keyword)
		if svc.Enabled {
			f.wanted = append(f.wanted, svc.Keyword)
		}
	}
	return f
}

// Start activates every catalog entry enabled in the configuration.
// Failures are logged and leave the entry disabled.
func (f *Filter) Start(ctx context.Context) {
	for _, keyword := range f.wanted {
		if _, err := f.Enable(ctx, keyword); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("service", keyword).Msg("proxy service not started")
		}
	}
	logging.Ctx(ctx).Info().Int("active", f.activeCount()).Int("catalog", len(f.order)).
		Int("maxlevel", f.settings.MaxLevel).Dur("timeout", f.settings.Timeout).
		Msg("proxy filter started")
}

// Settings returns the detection settings.
func (f *Filter) Settings() config.Settings {
	return f.settings
}

// Messages returns the message templates.
func (f *Filter) Messages() config.Messages {
	return f.messages
}

// Enable activates keyword. The scanner is built outside the lock so a slow
// data file load does not block running detections.
func (f *Filter) Enable(ctx context.Context, keyword string) (ToggleStatus, error) {
	f.mu.RLock()
	spec, ok := f.catalog[keyword]
	_, running := f.active[keyword]
	var snapshot scanner.Spec
	if ok {
		snapshot = *spec
	}
	f.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownService, keyword)
	}
	if running {
		return StatusAlreadyOn, nil
	}

	s, err := f.build(snapshot, f.settings, f.deps)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("service", keyword).Str("kind", string(snapshot.Kind)).
			Msg("could not bring up proxy service")
		return "", fmt.Errorf("%w %s: %w", ErrActivation, keyword, err)
	}

	f.mu.Lock()
	if _, raced := f.active[keyword]; raced {
		f.mu.Unlock()
		closeScanner(s)
		return StatusAlreadyOn, nil
	}
	f.active[keyword] = s
	f.catalog[keyword].Enabled = true
	n := len(f.active)
	f.mu.Unlock()

	metrics.ActiveScanners.Set(float64(n))
	logging.Ctx(ctx).Info().Str("service", keyword).Str("kind", string(snapshot.Kind)).Msg("proxy service enabled")
	return StatusOn, nil
}

// Disable deactivates keyword and releases its scanner.
func (f *Filter) Disable(ctx context.Context, keyword string) (ToggleStatus, error) {
	f.mu.Lock()
	spec, ok := f.catalog[keyword]
	if !ok {
		f.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownService, keyword)
	}
	s, running := f.active[keyword]
	if !running {
		f.mu.Unlock()
		return StatusAlreadyOff, nil
	}
	delete(f.active, keyword)
	spec.Enabled = false
	n := len(f.active)
	f.mu.Unlock()

	closeScanner(s)
	metrics.ActiveScanners.Set(float64(n))
	logging.Ctx(ctx).Info().Str("service", keyword).Msg("proxy service disabled")
	return StatusOff, nil
}

// Services returns the catalog in configuration order.
func (f *Filter) Services() []ServiceInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]ServiceInfo, 0, len(f.order))
	for _, keyword := range f.order {
		spec := f.catalog[keyword]
		out = append(out, ServiceInfo{Keyword: spec.Keyword, Kind: spec.Kind, Enabled: spec.Enabled})
	}
	return out
}

// HasService reports whether keyword is in the catalog.
func (f *Filter) HasService(keyword string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.catalog[keyword]
	return ok
}

// WantsLocation reports whether an active scanner reads client locations.
// Detection is then triggered once geolocation resolves instead of on auth.
func (f *Filter) WantsLocation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.active {
		if s.Kind() == scanner.KindGeolocation {
			return true
		}
	}
	return false
}

func (f *Filter) activeCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.active)
}

// snapshot returns the active scanners in catalog order.
func (f *Filter) snapshot() []scanner.Scanner {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]scanner.Scanner, 0, len(f.active))
	for _, keyword := range f.order {
		if s, ok := f.active[keyword]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Submit runs detection for client in its own goroutine. The run is not
// tied to any request and is not awaited on shutdown.
func (f *Filter) Submit(client *models.Client) {
	ctx := logging.ContextWithNewCorrelationID(context.Background())
	go f.RunDetection(ctx, client)
}

// ScanConnected submits every client, typically the player list the host
// reports after startup or a reconnect. It returns the number submitted.
func (f *Filter) ScanConnected(clients []*models.Client) int {
	n := 0
	for _, c := range clients {
		if c == nil {
			continue
		}
		f.Submit(c)
		n++
	}
	return n
}

// RunDetection scans client with the active scanners in catalog order and
// stops at the first positive. A detected client is recorded, kicked and
// announced; the record is returned. Clients at or above maxlevel are not
// scanned.
func (f *Filter) RunDetection(ctx context.Context, client *models.Client) *models.DetectionRecord {
	log := logging.Ctx(ctx).With().Int64("client_id", client.ID).Str("client", client.Name).Logger()

	if client.Level >= f.settings.MaxLevel {
		metrics.ScansBypassed.Inc()
		log.Debug().Int("level", client.Level).Int("maxlevel", f.settings.MaxLevel).
			Msgf("bypassing proxy scan for %s: group level too high", client)
		return nil
	}

	for _, s := range f.snapshot() {
		if !s.Scan(ctx, client) {
			continue
		}
		log.Info().Str("service", s.Keyword()).Str("ip", client.IP).Msgf("proxy detected for %s", client)
		return f.reject(ctx, client, s.Keyword())
	}

	log.Debug().Msgf("no proxy detected for %s", client)
	return nil
}

// reject records, kicks and announces a detected client. Each step runs
// even if an earlier one failed.
func (f *Filter) reject(ctx context.Context, client *models.Client, service string) *models.DetectionRecord {
	log := logging.Ctx(ctx)
	now := time.Now()
	metrics.RecordDetection(service)

	record := &models.DetectionRecord{
		ClientID: client.ID,
		Service:  service,
		IP:       client.IP,
		TimeAdd:  now.Truncate(time.Second),
	}
	if f.recorder != nil {
		if err := f.recorder.SaveDetection(ctx, record); err != nil {
			log.Error().Err(err).Str("service", service).Msgf("could not store proxy detection for %s", client)
		}
	}

	if f.console != nil {
		if err := f.console.Kick(ctx, client, f.settings.Reason, true); err != nil {
			log.Error().Err(err).Msgf("could not kick %s", client)
		}
		msg := f.messages.Format(config.MsgClientRejected, map[string]string{
			"client":  client.Name,
			"id":      strconv.FormatInt(client.ID, 10),
			"ip":      client.IP,
			"service": service,
		})
		if msg != "" {
			if err := f.console.Say(ctx, msg); err != nil {
				log.Warn().Err(err).Msg("could not announce rejection")
			}
		}
	}

	if f.broadcaster != nil {
		f.broadcaster.BroadcastJSON(BroadcastClientRejected, models.RejectionNotice{
			ClientID:   client.ID,
			ClientName: client.Name,
			IP:         client.IP,
			Service:    service,
			Reason:     f.settings.Reason,
			Timestamp:  now,
		})
	}
	return record
}

// Close releases every active scanner.
func (f *Filter) Close() error {
	f.mu.Lock()
	scanners := make([]scanner.Scanner, 0, len(f.active))
	for keyword, s := range f.active {
		scanners = append(scanners, s)
		f.catalog[keyword].Enabled = false
	}
	f.active = make(map[string]scanner.Scanner)
	f.mu.Unlock()

	for _, s := range scanners {
		closeScanner(s)
	}
	metrics.ActiveScanners.Set(0)
	return nil
}

func closeScanner(s scanner.Scanner) {
	c, ok := s.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Str("service", s.Keyword()).Msg("failed to release proxy service")
	}
}
