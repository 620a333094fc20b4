// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   zerolog.Level
		wantOK bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"loud", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: zerolog.WarnLevel, NoColor: true, Out: &buf})

	logger.Info().Msg("quiet")
	logger.Warn().Str("port", "/dev/ttyUSB0").Msg("checksum errors rising")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info message logged at warn level:\n%s", out)
	}
	if !strings.Contains(out, "checksum errors rising") || !strings.Contains(out, "port=/dev/ttyUSB0") {
		t.Errorf("warn message missing:\n%s", out)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")

	opts := Options{Level: zerolog.InfoLevel}
	applyEnvOverrides(&opts)
	if opts.Level != zerolog.ErrorLevel || !opts.NoColor {
		t.Errorf("opts = %+v", opts)
	}
}

func TestApplyEnvOverrides_IgnoresGarbage(t *testing.T) {
	t.Setenv(EnvLogLevel, "shouting")
	t.Setenv(EnvLogNoColor, "maybe")

	opts := Options{Level: zerolog.DebugLevel}
	applyEnvOverrides(&opts)
	if opts.Level != zerolog.DebugLevel || opts.NoColor {
		t.Errorf("opts = %+v", opts)
	}
}
