// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "XBUSCOPE_LOG_LEVEL"
	EnvLogNoColor = "XBUSCOPE_LOG_NOCOLOR"
)

// Options controls logger construction
type Options struct {
	Level   zerolog.Level
	NoColor bool
	Out     io.Writer // defaults to os.Stderr
}

var configureOnce sync.Once

// New builds a console logger. Diagnostics go to stderr so decoded
// output on stdout stays clean.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	console := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	}
	return zerolog.New(console).Level(opts.Level).With().Timestamp().Str("app", "xbuscope").Logger()
}

// Configure installs the global logger once. Level and color come from
// the arguments, then from the environment.
func Configure(level string, noColor bool) {
	configureOnce.Do(func() {
		opts := Options{Level: zerolog.InfoLevel, NoColor: noColor}
		if lvl, ok := ParseLevel(level); ok {
			opts.Level = lvl
		}
		applyEnvOverrides(&opts)

		zerolog.SetGlobalLevel(opts.Level)
		log.Logger = New(opts)
	})
}

func applyEnvOverrides(opts *Options) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level. The second result is
// false for an empty or unknown name.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
