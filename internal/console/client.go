// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package console talks to the host bot's remote console through its HTTP
// callback endpoint.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// Actions understood by the host callback.
const (
	ActionKick    = "kick"
	ActionSay     = "say"
	ActionMessage = "message"
)

// ErrNotConfigured is returned when no callback URL is set.
var ErrNotConfigured = errors.New("console callback url is not configured")

// Action is the JSON body posted to the callback URL.
type Action struct {
	Action   string `json:"action"`
	ClientID int64  `json:"client_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Silent   bool   `json:"silent,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Client posts console actions to the host. It implements detection.Console.
type Client struct {
	callbackURL string
	token       string
	client      *http.Client

	// limiter is nil when callbacks are not spaced.
	limiter *rate.Limiter
}

// New creates a console client from cfg.
func New(cfg config.ConsoleConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		callbackURL: cfg.CallbackURL,
		token:       cfg.Token,
		client:      &http.Client{Timeout: timeout},
	}
	if cfg.RateLimitMs > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Duration(cfg.RateLimitMs)*time.Millisecond), 1)
	}
	return c
}

// Enabled reports whether a callback URL is configured.
func (c *Client) Enabled() bool {
	return c.callbackURL != ""
}

// Kick asks the host to kick client.
func (c *Client) Kick(ctx context.Context, client *models.Client, reason string, silent bool) error {
	return c.send(ctx, Action{Action: ActionKick, ClientID: client.ID, Reason: reason, Silent: silent})
}

// Say broadcasts msg to every player.
func (c *Client) Say(ctx context.Context, msg string) error {
	return c.send(ctx, Action{Action: ActionSay, Message: msg})
}

// Message sends msg privately to client.
func (c *Client) Message(ctx context.Context, client *models.Client, msg string) error {
	return c.send(ctx, Action{Action: ActionMessage, ClientID: client.ID, Message: msg})
}

func (c *Client) send(ctx context.Context, action Action) (err error) {
	defer func() { metrics.RecordConsoleCallback(action.Action, err) }()

	if c.callbackURL == "" {
		return ErrNotConfigured
	}
	if err = c.wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal console action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create console request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send console %s: %w", action.Action, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("console %s returned status %d", action.Action, resp.StatusCode)
	}
	return nil
}

// wait spaces callbacks by the configured interval. Concurrent kicks queue
// instead of being dropped.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
