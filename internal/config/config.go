// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads xbuscope settings from an optional TOML file and the
// environment. Command line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvPort = "XBUSCOPE_PORT"
	EnvBaud = "XBUSCOPE_BAUD"
	EnvURL  = "XBUSCOPE_URL"
)

// Config holds every setting a command may need
type Config struct {
	// Serial
	Port string
	Baud int

	// WebSocket
	URL         string
	Username    string
	NoSSLVerify bool

	// BusID is the destination bus for messages sent by xbuscope
	BusID uint8

	LogLevel   string
	LogNoColor bool

	CapturePath   string
	StatsInterval time.Duration
}

type fileConfig struct {
	Port          string `toml:"port"`
	Baud          int    `toml:"baud"`
	URL           string `toml:"url"`
	Username      string `toml:"username"`
	NoSSLVerify   bool   `toml:"no_ssl_verify"`
	BusID         int    `toml:"bus_id"`
	LogLevel      string `toml:"log_level"`
	LogNoColor    bool   `toml:"log_no_color"`
	CapturePath   string `toml:"capture_path"`
	StatsInterval string `toml:"stats_interval"`
}

// Default returns the built in settings
func Default() Config {
	return Config{
		Baud:          115200,
		BusID:         0xFF,
		LogLevel:      "info",
		StatsInterval: 5 * time.Second,
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
// Environment overrides are applied afterwards.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("port") {
		c.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		c.Baud = raw.Baud
	}
	if meta.IsDefined("url") {
		c.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("username") {
		c.Username = raw.Username
	}
	if meta.IsDefined("no_ssl_verify") {
		c.NoSSLVerify = raw.NoSSLVerify
	}
	if meta.IsDefined("bus_id") {
		if raw.BusID < 0 || raw.BusID > 0xFF {
			return fmt.Errorf("load config %s: bus_id %d out of range", path, raw.BusID)
		}
		c.BusID = uint8(raw.BusID)
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_no_color") {
		c.LogNoColor = raw.LogNoColor
	}
	if meta.IsDefined("capture_path") {
		c.CapturePath = strings.TrimSpace(raw.CapturePath)
	}
	if meta.IsDefined("stats_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StatsInterval))
		if err != nil {
			return fmt.Errorf("parse stats_interval: %w", err)
		}
		c.StatsInterval = d
	}

	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		c.Port = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaud)); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvBaud, err)
		}
		c.Baud = baud
	}
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		c.URL = v
	}
	return nil
}

// Validate checks settings that would otherwise fail late
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be positive, got %s", c.StatsInterval)
	}
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("unsupported url scheme %q (use ws:// or wss://)", u.Scheme)
		}
	}
	return nil
}
