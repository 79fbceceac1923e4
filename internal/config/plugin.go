// Proxyguard - Proxy and VPN Detection for Game Server Administration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxyguard

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/tomtom215/proxyguard/internal/logging"
)

// Plugin defaults.
const (
	DefaultMaxLevel = 40
	DefaultReason   = "^1proxy detected"
	DefaultTimeout  = 4 * time.Second

	// DefaultCommandLevel applies to commands registered without a
	// [commands] section.
	DefaultCommandLevel = 80
)

// Service kinds understood by the scanner factory.
const (
	KindHTTP        = "http"
	KindGeolocation = "geolocation"
	KindVPNList     = "vpnlist"
	KindIP2Proxy    = "ip2proxy"
)

// groupLevels maps B3 group keywords to their privilege level.
var groupLevels = map[string]int{
	"guest":       0,
	"user":        1,
	"reg":         2,
	"mod":         20,
	"admin":       40,
	"fulladmin":   60,
	"senioradmin": 80,
	"superadmin":  100,
}

// GroupLevel resolves a group keyword ("admin") or a bare number ("40") to
// a privilege level.
func GroupLevel(value string) (int, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if level, ok := groupLevels[value]; ok {
		return level, nil
	}
	level, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("unknown group %q", value)
	}
	if level < 0 || level > 100 {
		return 0, fmt.Errorf("group level %d out of range 0-100", level)
	}
	return level, nil
}

// Settings are the detection knobs from the [settings] section.
type Settings struct {
	// MaxLevel is the privilege level at or above which clients are not scanned.
	MaxLevel int
	// Reason is attached to the kick.
	Reason string
	// Timeout bounds one HTTP lookup.
	Timeout time.Duration
}

// Service is one entry of the proxy service catalog.
type Service struct {
	Keyword string
	Kind    string
	Enabled bool
	// URL is the lookup template for http services, with one %s for the IP.
	URL string
	// Path is the data file for vpnlist and ip2proxy services.
	Path string
	// Rate is the provider quota in lookups per second for http services.
	// 0 leaves lookups unthrottled.
	Rate float64
	// Burst is the number of lookups allowed at once under Rate. 0 means
	// one second's worth.
	Burst int
}

// Command is a registered admin command and the minimum level to run it.
type Command struct {
	Name  string
	Alias string
	Level int
}

// Plugin is the parsed ini plugin file.
type Plugin struct {
	Settings Settings
	Services []Service
	Commands []Command
	Messages Messages
}

// DefaultServices returns the built-in service catalog in catalog order.
func DefaultServices() []Service {
	return []Service{
		{
			Keyword: "winmxunlimited",
			Kind:    KindHTTP,
			Enabled: true,
			URL:     "http://winmxunlimited.net/api/proxydetection/v1/query/?ip=%s",
		},
		{
			Keyword: "geolocationplugin",
			Kind:    KindGeolocation,
			Enabled: true,
		},
		{
			Keyword: "vpnlist",
			Kind:    KindVPNList,
			Enabled: false,
		},
		{
			Keyword: "ip2proxy",
			Kind:    KindIP2Proxy,
			Enabled: false,
		},
	}
}

// DefaultCommands returns the admin commands registered when the plugin file
// has no [commands] section.
func DefaultCommands() []Command {
	return []Command{
		{Name: "proxylist", Level: DefaultCommandLevel},
		{Name: "proxyservice", Level: DefaultCommandLevel},
		{Name: "proxystats", Level: DefaultCommandLevel},
	}
}

// DefaultPlugin returns the plugin configuration used when no file is given.
func DefaultPlugin() *Plugin {
	return &Plugin{
		Settings: Settings{
			MaxLevel: DefaultMaxLevel,
			Reason:   DefaultReason,
			Timeout:  DefaultTimeout,
		},
		Services: DefaultServices(),
		Commands: DefaultCommands(),
		Messages: DefaultMessages(),
	}
}

// LoadPlugin reads the ini plugin file at path. An empty path yields the
// defaults. Only an unreadable or unparsable file is an error; bad values
// inside it are logged and replaced by defaults.
func LoadPlugin(path string) (*Plugin, error) {
	if path == "" {
		logging.Warn().Msg("no plugin config file given, using default configuration")
		return DefaultPlugin(), nil
	}
	file, err := ini.LoadSources(iniOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load plugin config %s: %w", path, err)
	}
	return fromINI(file), nil
}

// ParsePlugin parses plugin configuration from memory.
func ParsePlugin(data []byte) (*Plugin, error) {
	file, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plugin config: %w", err)
	}
	return fromINI(file), nil
}

// iniOptions lowercases section and key names the way B3's ConfigParser
// does. Inline comments are kept as part of the value so reasons and message
// templates may contain '#' and ';'.
var iniOptions = ini.LoadOptions{
	Insensitive:         true,
	IgnoreInlineComment: true,
}

func fromINI(file *ini.File) *Plugin {
	p := DefaultPlugin()
	loadSettings(file, &p.Settings)
	loadServices(file, p.Services)
	p.Commands = loadCommands(file)
	loadMessages(file, p.Messages)
	return p
}

func loadSettings(file *ini.File, s *Settings) {
	sec, err := file.GetSection("settings")
	if err != nil {
		logging.Warn().Msg(`section "settings" missing in plugin config: using default settings`)
		return
	}

	if !sec.HasKey("maxlevel") {
		logging.Warn().Int("default", s.MaxLevel).Msg("could not find settings/maxlevel in plugin config, using default")
	} else if level, err := GroupLevel(sec.Key("maxlevel").String()); err != nil {
		logging.Error().Err(err).Int("default", s.MaxLevel).Msg("could not load settings/maxlevel config value, using default")
	} else {
		s.MaxLevel = level
		logging.Debug().Int("maxlevel", level).Msg("loaded settings/maxlevel")
	}

	if !sec.HasKey("reason") {
		logging.Warn().Str("default", s.Reason).Msg("could not find settings/reason in plugin config, using default")
	} else {
		s.Reason = sec.Key("reason").String()
		logging.Debug().Str("reason", s.Reason).Msg("loaded settings/reason")
	}

	if !sec.HasKey("timeout") {
		logging.Warn().Dur("default", s.Timeout).Msg("could not find settings/timeout in plugin config, using default")
		return
	}
	seconds, err := sec.Key("timeout").Int()
	if err == nil && seconds <= 0 {
		err = fmt.Errorf("timeout must be a positive number of seconds, got %d", seconds)
	}
	if err != nil {
		logging.Error().Err(err).Dur("default", s.Timeout).Msg("could not load settings/timeout config value, using default")
		return
	}
	s.Timeout = time.Duration(seconds) * time.Second
	logging.Debug().Dur("timeout", s.Timeout).Msg("loaded settings/timeout")
}

// loadServices applies [services] to the catalog in place. Keys are either
// "<keyword>: yes|no" or "<keyword>.url", "<keyword>.path",
// "<keyword>.rate" and "<keyword>.burst" overrides.
func loadServices(file *ini.File, services []Service) {
	sec, err := file.GetSection("services")
	if err != nil {
		logging.Warn().Msg(`section "services" missing in plugin config: using default configuration`)
		return
	}

	index := make(map[string]*Service, len(services))
	for i := range services {
		index[services[i].Keyword] = &services[i]
	}

	for _, key := range sec.Keys() {
		name, attr, _ := strings.Cut(key.Name(), ".")
		svc, ok := index[name]
		if !ok {
			logging.Warn().Str("service", name).Msg("invalid proxy service found in plugin config")
			continue
		}

		switch attr {
		case "":
			enabled, err := key.Bool()
			if err != nil {
				logging.Error().Err(err).Str("service", name).Bool("enabled", svc.Enabled).
					Msg("could not load services config value, keeping default")
				continue
			}
			svc.Enabled = enabled
			logging.Debug().Str("service", name).Bool("enabled", enabled).Msg("using proxy service")
		case "url":
			svc.URL = key.String()
		case "path":
			svc.Path = key.String()
		case "rate":
			r, err := key.Float64()
			if err != nil || r < 0 {
				logging.Error().Str("service", name).Str("rate", key.String()).
					Msg("invalid proxy service rate, lookups stay unthrottled")
				continue
			}
			svc.Rate = r
		case "burst":
			b, err := key.Int()
			if err != nil || b < 0 {
				logging.Error().Str("service", name).Str("burst", key.String()).
					Msg("invalid proxy service burst, using the default")
				continue
			}
			svc.Burst = b
		default:
			logging.Warn().Str("key", key.Name()).Msg("unknown proxy service option in plugin config")
		}
	}
}

// loadCommands reads "name: level" and "name-alias: level" entries. Entries
// with an unknown level are skipped.
func loadCommands(file *ini.File) []Command {
	sec, err := file.GetSection("commands")
	if err != nil {
		logging.Warn().Msg(`section "commands" missing in plugin config: registering default commands`)
		return DefaultCommands()
	}

	commands := make([]Command, 0, len(sec.Keys()))
	for _, key := range sec.Keys() {
		name, alias, _ := strings.Cut(key.Name(), "-")
		level, err := GroupLevel(key.String())
		if err != nil {
			logging.Error().Err(err).Str("command", name).Msg("could not register command")
			continue
		}
		commands = append(commands, Command{Name: name, Alias: alias, Level: level})
	}
	return commands
}

func loadMessages(file *ini.File, messages Messages) {
	sec, err := file.GetSection("messages")
	if err != nil {
		logging.Warn().Msg(`section "messages" missing in plugin config: using default messages`)
		return
	}
	for _, key := range sec.Keys() {
		messages[key.Name()] = key.String()
	}
}
