// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package detection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/models"
	"github.com/tomtom215/proxyguard/internal/scanner"
)

// =============================================================================
// Test doubles
// =============================================================================

type fakeScanner struct {
	keyword string
	kind    scanner.Kind
	result  bool
	calls   atomic.Int32
	closed  atomic.Bool
}

func (s *fakeScanner) Keyword() string    { return s.keyword }
func (s *fakeScanner) Kind() scanner.Kind { return s.kind }

func (s *fakeScanner) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeScanner) Scan(context.Context, *models.Client) bool {
	s.calls.Add(1)
	return s.result
}

type kickCall struct {
	clientID int64
	reason   string
	silent   bool
}

type fakeConsole struct {
	mu      sync.Mutex
	kicks   []kickCall
	says    []string
	private []string
	kicked  chan struct{}
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{kicked: make(chan struct{}, 16)}
}

func (c *fakeConsole) Kick(_ context.Context, client *models.Client, reason string, silent bool) error {
	c.mu.Lock()
	c.kicks = append(c.kicks, kickCall{client.ID, reason, silent})
	c.mu.Unlock()
	c.kicked <- struct{}{}
	return nil
}

func (c *fakeConsole) Say(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.says = append(c.says, msg)
	return nil
}

func (c *fakeConsole) Message(_ context.Context, _ *models.Client, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.private = append(c.private, msg)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []models.DetectionRecord
	err     error
}

func (r *fakeRecorder) SaveDetection(_ context.Context, record *models.DetectionRecord) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = int64(len(r.records) + 1)
	r.records = append(r.records, *record)
	return nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	types    []string
	messages []interface{}
}

func (b *fakeBroadcaster) BroadcastJSON(messageType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
	b.messages = append(b.messages, data)
}

// =============================================================================
// Test Helpers
// =============================================================================

var testSettings = config.Settings{MaxLevel: 40, Reason: config.DefaultReason, Timeout: time.Second}

// fakeBuild returns a BuildFunc that hands out the given scanners by
// keyword and fails for keywords listed in failures.
func fakeBuild(scanners map[string]*fakeScanner, failures map[string]error) BuildFunc {
	return func(spec scanner.Spec, _ config.Settings, _ scanner.Deps) (scanner.Scanner, error) {
		if err := failures[spec.Keyword]; err != nil {
			return nil, err
		}
		s, ok := scanners[spec.Keyword]
		if !ok {
			return nil, scanner.ErrUnknownKind
		}
		return s, nil
	}
}

type filterFixture struct {
	filter      *Filter
	console     *fakeConsole
	recorder    *fakeRecorder
	broadcaster *fakeBroadcaster
}

func newFilterFixture(t *testing.T, services []config.Service, build BuildFunc) *filterFixture {
	t.Helper()
	fx := &filterFixture{
		console:     newFakeConsole(),
		recorder:    &fakeRecorder{},
		broadcaster: &fakeBroadcaster{},
	}
	fx.filter = NewFilter(Options{
		Settings:    testSettings,
		Services:    services,
		Recorder:    fx.recorder,
		Console:     fx.console,
		Broadcaster: fx.broadcaster,
		Build:       build,
	})
	t.Cleanup(func() { _ = fx.filter.Close() })
	return fx
}

func threeServices() []config.Service {
	return []config.Service{
		{Keyword: "alpha", Kind: config.KindHTTP, Enabled: true},
		{Keyword: "beta", Kind: config.KindHTTP, Enabled: true},
		{Keyword: "gamma", Kind: config.KindHTTP, Enabled: true},
	}
}

func player(level int) *models.Client {
	return &models.Client{ID: 3, Name: "Fenix", IP: "127.0.0.2", Level: level}
}

// =============================================================================
// Registry
// =============================================================================

func TestFilter_EnableDisable(t *testing.T) {
	alpha := &fakeScanner{keyword: "alpha", kind: scanner.KindHTTP}
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(map[string]*fakeScanner{"alpha": alpha}, nil))
	ctx := context.Background()

	steps := []struct {
		name string
		op   func(context.Context, string) (ToggleStatus, error)
		want ToggleStatus
	}{
		{"enable", fx.filter.Enable, StatusOn},
		{"enable again", fx.filter.Enable, StatusAlreadyOn},
		{"disable", fx.filter.Disable, StatusOff},
		{"disable again", fx.filter.Disable, StatusAlreadyOff},
		{"re-enable", fx.filter.Enable, StatusOn},
	}
	for _, step := range steps {
		got, err := step.op(ctx, "alpha")
		if err != nil {
			t.Fatalf("%s: error = %v", step.name, err)
		}
		if got != step.want {
			t.Errorf("%s: status = %q, want %q", step.name, got, step.want)
		}
	}

	if svc := fx.filter.Services(); len(svc) != 1 || !svc[0].Enabled {
		t.Errorf("Services() = %+v, want alpha enabled", svc)
	}
}

func TestFilter_UnknownService(t *testing.T) {
	fx := newFilterFixture(t, threeServices(), fakeBuild(nil, nil))
	ctx := context.Background()

	if _, err := fx.filter.Enable(ctx, "fakekeyword"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Enable() error = %v, want ErrUnknownService", err)
	}
	if _, err := fx.filter.Disable(ctx, "fakekeyword"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Disable() error = %v, want ErrUnknownService", err)
	}
	if fx.filter.HasService("fakekeyword") {
		t.Error("HasService(fakekeyword) = true")
	}
}

func TestFilter_FailedActivationLeavesServiceDisabled(t *testing.T) {
	cause := errors.New("no geolocation resolver")
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(nil, map[string]error{"alpha": cause}))

	_, err := fx.filter.Enable(context.Background(), "alpha")
	if !errors.Is(err, ErrActivation) {
		t.Errorf("error = %v, want ErrActivation", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, should wrap the construction error", err)
	}
	if fx.filter.Services()[0].Enabled {
		t.Error("service enabled after failed activation")
	}
}

func TestFilter_DisableReleasesScanner(t *testing.T) {
	alpha := &fakeScanner{keyword: "alpha", kind: scanner.KindIP2Proxy}
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(map[string]*fakeScanner{"alpha": alpha}, nil))
	ctx := context.Background()

	if _, err := fx.filter.Enable(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.filter.Disable(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	if !alpha.closed.Load() {
		t.Error("disabled scanner was not closed")
	}
}

func TestFilter_StartActivatesConfiguredServices(t *testing.T) {
	services := threeServices()
	services[1].Enabled = false
	scanners := map[string]*fakeScanner{
		"alpha": {keyword: "alpha", kind: scanner.KindHTTP},
		"beta":  {keyword: "beta", kind: scanner.KindHTTP},
	}
	// gamma cannot be built, Start keeps going.
	fx := newFilterFixture(t, services, fakeBuild(scanners, map[string]error{"gamma": errors.New("boom")}))
	fx.filter.Start(context.Background())

	want := map[string]bool{"alpha": true, "beta": false, "gamma": false}
	for _, svc := range fx.filter.Services() {
		if svc.Enabled != want[svc.Keyword] {
			t.Errorf("%s enabled = %v, want %v", svc.Keyword, svc.Enabled, want[svc.Keyword])
		}
	}
}

func TestFilter_ServicesKeepCatalogOrder(t *testing.T) {
	services := []config.Service{
		{Keyword: "zeta", Kind: config.KindHTTP},
		{Keyword: "alpha", Kind: config.KindGeolocation},
		{Keyword: "zeta", Kind: config.KindVPNList}, // duplicate is ignored
	}
	fx := newFilterFixture(t, services, fakeBuild(nil, nil))

	got := fx.filter.Services()
	if len(got) != 2 || got[0].Keyword != "zeta" || got[1].Keyword != "alpha" {
		t.Fatalf("Services() = %+v", got)
	}
	if got[0].Kind != scanner.KindHTTP {
		t.Errorf("duplicate replaced the first entry: %+v", got[0])
	}
}

func TestFilter_WantsLocation(t *testing.T) {
	services := []config.Service{
		{Keyword: "winmxunlimited", Kind: config.KindHTTP},
		{Keyword: "geolocationplugin", Kind: config.KindGeolocation},
	}
	scanners := map[string]*fakeScanner{
		"winmxunlimited":    {keyword: "winmxunlimited", kind: scanner.KindHTTP},
		"geolocationplugin": {keyword: "geolocationplugin", kind: scanner.KindGeolocation},
	}
	fx := newFilterFixture(t, services, fakeBuild(scanners, nil))
	ctx := context.Background()

	if _, err := fx.filter.Enable(ctx, "winmxunlimited"); err != nil {
		t.Fatal(err)
	}
	if fx.filter.WantsLocation() {
		t.Error("WantsLocation() = true with only an http scanner")
	}
	if _, err := fx.filter.Enable(ctx, "geolocationplugin"); err != nil {
		t.Fatal(err)
	}
	if !fx.filter.WantsLocation() {
		t.Error("WantsLocation() = false with a geolocation scanner active")
	}
}

// =============================================================================
// Detection runs
// =============================================================================

func enableAll(t *testing.T, f *Filter) {
	t.Helper()
	for _, svc := range f.Services() {
		if _, err := f.Enable(context.Background(), svc.Keyword); err != nil {
			t.Fatalf("Enable(%s) error = %v", svc.Keyword, err)
		}
	}
}

func TestRunDetection_ShortCircuits(t *testing.T) {
	scanners := map[string]*fakeScanner{
		"alpha": {keyword: "alpha", kind: scanner.KindHTTP, result: false},
		"beta":  {keyword: "beta", kind: scanner.KindHTTP, result: true},
		"gamma": {keyword: "gamma", kind: scanner.KindHTTP, result: true},
	}
	fx := newFilterFixture(t, threeServices(), fakeBuild(scanners, nil))
	// Activation order does not change scan order.
	for _, kw := range []string{"gamma", "beta", "alpha"} {
		if _, err := fx.filter.Enable(context.Background(), kw); err != nil {
			t.Fatal(err)
		}
	}

	record := fx.filter.RunDetection(context.Background(), player(0))
	if record == nil {
		t.Fatal("RunDetection() = nil, want a record")
	}
	if record.Service != "beta" || record.ClientID != 3 || record.IP != "127.0.0.2" {
		t.Errorf("record = %+v", record)
	}

	for kw, want := range map[string]int32{"alpha": 1, "beta": 1, "gamma": 0} {
		if got := scanners[kw].calls.Load(); got != want {
			t.Errorf("%s scanned %d times, want %d", kw, got, want)
		}
	}

	if len(fx.recorder.records) != 1 {
		t.Errorf("stored %d records, want 1", len(fx.recorder.records))
	}
	if len(fx.console.kicks) != 1 {
		t.Fatalf("kicks = %d, want 1", len(fx.console.kicks))
	}
	if k := fx.console.kicks[0]; k.reason != config.DefaultReason || !k.silent || k.clientID != 3 {
		t.Errorf("kick = %+v", k)
	}
	if len(fx.console.says) != 1 || fx.console.says[0] != "^7Fenix has been ^1rejected^7: proxy detected" {
		t.Errorf("says = %q", fx.console.says)
	}
	if len(fx.broadcaster.types) != 1 || fx.broadcaster.types[0] != BroadcastClientRejected {
		t.Errorf("broadcasts = %v", fx.broadcaster.types)
	}
	notice, ok := fx.broadcaster.messages[0].(models.RejectionNotice)
	if !ok || notice.Service != "beta" || notice.ClientName != "Fenix" {
		t.Errorf("notice = %+v", fx.broadcaster.messages[0])
	}
}

func TestRunDetection_MaxLevelBypass(t *testing.T) {
	scanners := map[string]*fakeScanner{
		"alpha": {keyword: "alpha", kind: scanner.KindHTTP, result: true},
	}
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(scanners, nil))
	enableAll(t, fx.filter)

	for _, level := range []int{40, 41, 100} {
		if record := fx.filter.RunDetection(context.Background(), player(level)); record != nil {
			t.Errorf("level %d: RunDetection() = %+v, want nil", level, record)
		}
	}
	if got := scanners["alpha"].calls.Load(); got != 0 {
		t.Errorf("scanner called %d times for privileged clients", got)
	}
	if len(fx.recorder.records) != 0 || len(fx.console.kicks) != 0 {
		t.Error("privileged client was recorded or kicked")
	}

	// One level below the threshold is scanned.
	if fx.filter.RunDetection(context.Background(), player(39)) == nil {
		t.Error("level 39 client was not scanned")
	}
}

func TestRunDetection_NoDetection(t *testing.T) {
	scanners := map[string]*fakeScanner{
		"alpha": {keyword: "alpha", kind: scanner.KindHTTP},
		"beta":  {keyword: "beta", kind: scanner.KindHTTP},
		"gamma": {keyword: "gamma", kind: scanner.KindHTTP},
	}
	fx := newFilterFixture(t, threeServices(), fakeBuild(scanners, nil))
	enableAll(t, fx.filter)

	if record := fx.filter.RunDetection(context.Background(), player(0)); record != nil {
		t.Errorf("RunDetection() = %+v, want nil", record)
	}
	for kw, s := range scanners {
		if s.calls.Load() != 1 {
			t.Errorf("%s scanned %d times, want 1", kw, s.calls.Load())
		}
	}
	if len(fx.console.kicks) != 0 || len(fx.broadcaster.types) != 0 {
		t.Error("clean client was kicked or announced")
	}
}

func TestRunDetection_NoActiveScanners(t *testing.T) {
	fx := newFilterFixture(t, threeServices(), fakeBuild(nil, nil))
	if record := fx.filter.RunDetection(context.Background(), player(0)); record != nil {
		t.Errorf("RunDetection() = %+v, want nil", record)
	}
}

func TestRunDetection_StoreFailureStillKicks(t *testing.T) {
	scanners := map[string]*fakeScanner{"alpha": {keyword: "alpha", kind: scanner.KindHTTP, result: true}}
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(scanners, nil))
	fx.recorder.err = errors.New("disk full")
	enableAll(t, fx.filter)

	if fx.filter.RunDetection(context.Background(), player(0)) == nil {
		t.Fatal("RunDetection() = nil, want a record")
	}
	if len(fx.console.kicks) != 1 {
		t.Errorf("kicks = %d, want 1 even when the store fails", len(fx.console.kicks))
	}
}

func TestRunDetection_SnapshotIgnoresLaterChanges(t *testing.T) {
	fx := newFilterFixture(t, threeServices()[:2], nil)

	// alpha disables beta while the run is in progress; beta was part of the
	// snapshot and is still scanned.
	beta := &fakeScanner{keyword: "beta", kind: scanner.KindHTTP, result: true}
	alpha := &hookScanner{keyword: "alpha", hook: func() {
		if _, err := fx.filter.Disable(context.Background(), "beta"); err != nil {
			t.Errorf("Disable(beta) error = %v", err)
		}
	}}
	fx.filter.build = func(spec scanner.Spec, _ config.Settings, _ scanner.Deps) (scanner.Scanner, error) {
		if spec.Keyword == "alpha" {
			return alpha, nil
		}
		return beta, nil
	}
	enableAll(t, fx.filter)

	record := fx.filter.RunDetection(context.Background(), player(0))
	if record == nil || record.Service != "beta" {
		t.Errorf("RunDetection() = %+v, want a beta record", record)
	}
}

type hookScanner struct {
	keyword string
	hook    func()
}

func (s *hookScanner) Keyword() string    { return s.keyword }
func (s *hookScanner) Kind() scanner.Kind { return scanner.KindHTTP }
func (s *hookScanner) Scan(context.Context, *models.Client) bool {
	s.hook()
	return false
}

func TestSubmit_RunsInBackground(t *testing.T) {
	scanners := map[string]*fakeScanner{"alpha": {keyword: "alpha", kind: scanner.KindHTTP, result: true}}
	fx := newFilterFixture(t, threeServices()[:1], fakeBuild(scanners, nil))
	enableAll(t, fx.filter)

	clients := []*models.Client{
		{ID: 1, Name: "one", IP: "10.0.0.1"},
		nil,
		{ID: 2, Name: "two", IP: "10.0.0.2"},
	}
	if n := fx.filter.ScanConnected(clients); n != 2 {
		t.Errorf("ScanConnected() = %d, want 2", n)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-fx.console.kicked:
		case <-time.After(5 * time.Second):
			t.Fatalf("kick %d did not happen", i+1)
		}
	}
}
