// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// Literal answers of the plain-text lookup API.
const (
	responseInvalidIP = "Invalid IP"
	responsePublic    = "Public"
	responseTor       = "Tor"
	responseClean     = "0"
)

// maxLookupBody caps how much of a provider answer is read.
const maxLookupBody = 4 << 10

// defaultQuotaWait bounds how long a scan queues for the provider quota
// before the lookup is skipped. A full server rescan stays well inside it at
// one lookup per second.
const defaultQuotaWait = 3 * time.Minute

// HTTPLookupScanner queries a remote proxy detection API keyed by IP.
//
// The URL template contains one %s which is replaced by the client IP. The
// provider answers with a short plain-text body:
//
//	Invalid IP  not detected (warning)
//	Public      open proxy, detected
//	Tor         Tor exit node, detected
//	0           clean
//
// Anything else is logged with the raw payload and treated as clean. Each
// scan issues at most one request; there are no retries.
type HTTPLookupScanner struct {
	keyword     string
	urlTemplate string
	timeout     time.Duration
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[string]

	// limiter is nil when the provider has no quota.
	limiter   *rate.Limiter
	quotaWait time.Duration
}

// HTTPOption customizes an HTTPLookupScanner.
type HTTPOption func(*HTTPLookupScanner)

// WithHTTPClient sets the client used for lookups.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPLookupScanner) {
		if c != nil {
			s.client = c
		}
	}
}

// WithRateLimit sets the provider quota. A burst of 0 allows one second's
// worth of lookups at once. rate.Inf or a non-positive limit removes it.
func WithRateLimit(limit rate.Limit, burst int) HTTPOption {
	return func(s *HTTPLookupScanner) {
		if limit <= 0 || limit == rate.Inf {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = int(math.Max(1, math.Ceil(float64(limit))))
		}
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithQuotaWait bounds the time a scan queues for the quota. It is separate
// from the lookup timeout.
func WithQuotaWait(d time.Duration) HTTPOption {
	return func(s *HTTPLookupScanner) {
		if d > 0 {
			s.quotaWait = d
		}
	}
}

// NewHTTPLookupScanner builds a lookup scanner. The template must contain
// exactly one %s and the timeout must be positive.
func NewHTTPLookupScanner(keyword, urlTemplate string, timeout time.Duration, opts ...HTTPOption) (*HTTPLookupScanner, error) {
	if strings.Count(urlTemplate, "%s") != 1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTemplate, urlTemplate)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("lookup timeout must be positive, got %v", timeout)
	}

	s := &HTTPLookupScanner{
		keyword:     keyword,
		urlTemplate: urlTemplate,
		timeout:     timeout,
		client:      &http.Client{},
		quotaWait:   defaultQuotaWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = newLookupBreaker("proxy-" + keyword)
	return s, nil
}

// Keyword implements Scanner.
func (s *HTTPLookupScanner) Keyword() string { return s.keyword }

// Kind implements Scanner.
func (s *HTTPLookupScanner) Kind() Kind { return KindHTTP }

// Scan implements Scanner.
func (s *HTTPLookupScanner) Scan(ctx context.Context, client *models.Client) bool {
	start := time.Now()
	detected := s.scan(ctx, client)
	metrics.RecordScan(s.keyword, detected, time.Since(start))
	return detected
}

func (s *HTTPLookupScanner) scan(ctx context.Context, client *models.Client) bool {
	log := logging.Ctx(ctx).With().Str("service", s.keyword).Str("ip", client.IP).Logger()

	if err := s.waitQuota(ctx); err != nil {
		metrics.RecordLookupError(s.keyword, "rate_limited")
		log.Warn().Err(err).Dur("quota_wait", s.quotaWait).Msg("proxy service quota exhausted, skipping lookup")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.breaker.Execute(func() (string, error) {
		return s.fetch(ctx, client.IP)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues("proxy-"+s.keyword, "rejected").Inc()
			metrics.RecordLookupError(s.keyword, "breaker_open")
			log.Warn().Err(err).Msg("proxy service unavailable, lookup skipped")
			return false
		}
		metrics.CircuitBreakerRequests.WithLabelValues("proxy-"+s.keyword, "failure").Inc()
		metrics.RecordLookupError(s.keyword, "network")
		log.Error().Err(err).Msg("could not connect to proxy service")
		return false
	}
	metrics.CircuitBreakerRequests.WithLabelValues("proxy-"+s.keyword, "success").Inc()

	switch payload := strings.TrimSpace(body); payload {
	case responseInvalidIP:
		metrics.RecordLookupError(s.keyword, "invalid_ip")
		log.Warn().Msg("proxy service rejected the ip address as invalid")
		return false
	case responsePublic:
		log.Debug().Msg("public proxy detected")
		return true
	case responseTor:
		log.Debug().Msg("tor exit node detected")
		return true
	case responseClean:
		log.Debug().Msg("proxy service reports a clean address")
		return false
	default:
		metrics.RecordLookupError(s.keyword, "payload")
		log.Warn().Str("payload", payload).Msg("unexpected proxy service response")
		return false
	}
}

// waitQuota queues for the provider quota, bounded by quotaWait. The lookup
// timeout starts afterwards.
func (s *HTTPLookupScanner) waitQuota(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.quotaWait)
	defer cancel()
	return s.limiter.Wait(ctx)
}

// fetch performs the GET. Non-2xx answers are errors so they count against
// the breaker.
func (s *HTTPLookupScanner) fetch(ctx context.Context, ip string) (string, error) {
	target := strings.Replace(s.urlTemplate, "%s", ip, 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "proxyguard")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Debug().Err(closeErr).Msg("error closing lookup response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("lookup returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLookupBody))
	if err != nil {
		return "", fmt.Errorf("failed to read lookup response: %w", err)
	}
	return string(data), nil
}
