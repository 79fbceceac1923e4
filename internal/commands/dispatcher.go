// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

// Package commands implements the in-game admin commands of the proxy
// filter: proxylist, proxyservice and proxystats.
//
// The host bot forwards a command line typed by a player together with the
// player's client record. The Dispatcher checks the player's level, runs the
// command and returns the response lines. When a console is configured the
// lines are also delivered in game, privately to the caller or to everyone
// for loud commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tomtom215/proxyguard/internal/config"
	"github.com/tomtom215/proxyguard/internal/detection"
	"github.com/tomtom215/proxyguard/internal/logging"
	"github.com/tomtom215/proxyguard/internal/metrics"
	"github.com/tomtom215/proxyguard/internal/models"
)

// Dispatch errors.
var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrInsufficientLevel = errors.New("insufficient privilege level")
)

// Filter is the part of *detection.Filter the commands drive.
type Filter interface {
	Services() []detection.ServiceInfo
	HasService(keyword string) bool
	Enable(ctx context.Context, keyword string) (detection.ToggleStatus, error)
	Disable(ctx context.Context, keyword string) (detection.ToggleStatus, error)
}

// Stats is the part of *detection.DuckDBStore proxystats reads.
type Stats interface {
	DistinctIPCount(ctx context.Context) (int64, error)
	CountByService(ctx context.Context) ([]models.ServiceCount, error)
}

// Request is one command invocation.
type Request struct {
	// Command is the command name or alias, with or without the "!" prefix.
	Command string `json:"command" validate:"required,max=64"`
	// Args is everything after the command name.
	Args string `json:"args" validate:"max=256"`
	// Loud broadcasts the response to every player.
	Loud bool `json:"loud"`
	// Client is the player who typed the command.
	Client models.Client `json:"client"`
}

// Response carries the lines produced by a command.
type Response struct {
	Command string   `json:"command"`
	Lines   []string `json:"lines"`
	Loud    bool     `json:"loud"`
}

// Info describes a registered command.
type Info struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
	Level int    `json:"level"`
	Usage string `json:"usage"`
}

type handlerFunc func(ctx context.Context, args string) []string

type command struct {
	info    Info
	handler handlerFunc
	// private commands always answer the caller only, even when loud.
	private bool
}

// Dispatcher routes command invocations to their handlers.
type Dispatcher struct {
	filter   Filter
	stats    Stats
	messages config.Messages
	console  detection.Console

	byName   map[string]*command
	commands []*command
}

// NewDispatcher registers the configured commands. Names without a handler
// are logged and skipped. console may be nil, in which case responses are
// only returned.
func NewDispatcher(cfg []config.Command, filter Filter, stats Stats, messages config.Messages, console detection.Console) *Dispatcher {
	d := &Dispatcher{
		filter:   filter,
		stats:    stats,
		messages: messages,
		console:  console,
		byName:   make(map[string]*command),
	}
	if d.messages == nil {
		d.messages = config.DefaultMessages()
	}

	builtins := map[string]struct {
		usage   string
		handler handlerFunc
		private bool
	}{
		"proxylist":    {"list the available proxy services", d.proxyList, false},
		"proxyservice": {"<service> <on|off> - enable or disable a proxy service", d.proxyService, true},
		"proxystats":   {"display proxy detection statistics", d.proxyStats, false},
	}

	for _, c := range cfg {
		name := strings.ToLower(c.Name)
		b, ok := builtins[name]
		if !ok {
			logging.Warn().Str("command", c.Name).Msg("could not register command: no such command")
			continue
		}
		if _, dup := d.byName[name]; dup {
			logging.Warn().Str("command", name).Msg("command registered twice, keeping the first")
			continue
		}
		cmd := &command{
			info:    Info{Name: name, Alias: strings.ToLower(c.Alias), Level: c.Level, Usage: b.usage},
			handler: b.handler,
			private: b.private,
		}
		d.byName[name] = cmd
		if cmd.info.Alias != "" {
			if _, taken := d.byName[cmd.info.Alias]; taken {
				logging.Warn().Str("command", name).Str("alias", cmd.info.Alias).Msg("command alias already in use")
				cmd.info.Alias = ""
			} else {
				d.byName[cmd.info.Alias] = cmd
			}
		}
		d.commands = append(d.commands, cmd)
		logging.Debug().Str("command", name).Str("alias", cmd.info.Alias).Int("level", c.Level).Msg("registered command")
	}
	return d
}

// Commands lists the registered commands sorted by name.
func (d *Dispatcher) Commands() []Info {
	out := make([]Info, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs req and delivers the response through the console.
// proxyservice replies privately whatever req.Loud says.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Response, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(req.Command), "!"))
	cmd, ok := d.byName[name]
	if !ok {
		metrics.RecordCommand(name, "unknown")
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	client := req.Client
	if client.Level < cmd.info.Level {
		metrics.RecordCommand(cmd.info.Name, "denied")
		logging.Ctx(ctx).Info().Str("command", cmd.info.Name).Int("level", client.Level).
			Int("required", cmd.info.Level).Msgf("%s is not allowed to run %s", &client, cmd.info.Name)
		return nil, fmt.Errorf("%w: %s requires level %d", ErrInsufficientLevel, cmd.info.Name, cmd.info.Level)
	}

	lines := cmd.handler(ctx, strings.TrimSpace(req.Args))
	metrics.RecordCommand(cmd.info.Name, "ok")

	loud := req.Loud && !cmd.private
	d.deliver(ctx, &client, lines, loud)
	return &Response{Command: cmd.info.Name, Lines: lines, Loud: loud}, nil
}

// deliver sends lines in game. Failures are logged; the response is still
// returned to the caller.
func (d *Dispatcher) deliver(ctx context.Context, client *models.Client, lines []string, loud bool) {
	if d.console == nil {
		return
	}
	for _, line := range lines {
		var err error
		if loud {
			err = d.console.Say(ctx, line)
		} else {
			err = d.console.Message(ctx, client, line)
		}
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Bool("loud", loud).Msg("could not deliver command response")
			return
		}
	}
}
