// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xbuscope.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
port = "/dev/ttyUSB1"
baud = 921600
bus_id = 1
log_level = "debug"
capture_path = "run.cbor"
stats_interval = "2s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "/dev/ttyUSB1" || cfg.Baud != 921600 {
		t.Errorf("serial = %s @ %d", cfg.Port, cfg.Baud)
	}
	if cfg.BusID != 1 {
		t.Errorf("BusID = %d", cfg.BusID)
	}
	if cfg.LogLevel != "debug" || cfg.CapturePath != "run.cbor" {
		t.Errorf("LogLevel=%q CapturePath=%q", cfg.LogLevel, cfg.CapturePath)
	}
	if cfg.StatsInterval != 2*time.Second {
		t.Errorf("StatsInterval = %s", cfg.StatsInterval)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `url = "wss://gateway.local/xbus"`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Baud != 115200 || cfg.BusID != 0xFF || cfg.StatsInterval != 5*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if cfg.URL != "wss://gateway.local/xbus" {
		t.Errorf("URL = %q", cfg.URL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
port = "/dev/ttyUSB1"
baud = 921600
`)
	t.Setenv(EnvPort, "/dev/ttyACM0")
	t.Setenv(EnvBaud, "2000000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "/dev/ttyACM0" || cfg.Baud != 2000000 {
		t.Errorf("serial = %s @ %d", cfg.Port, cfg.Baud)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", `port = `, "load config"},
		{"unknown key", `colour = "blue"`, "unknown key"},
		{"bus id range", `bus_id = 300`, "bus_id"},
		{"bad duration", `stats_interval = "soon"`, "stats_interval"},
		{"zero baud", `baud = 0`, "baud"},
		{"bad scheme", `url = "http://host/"`, "scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_BadEnvBaud(t *testing.T) {
	t.Setenv(EnvBaud, "fast")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), EnvBaud) {
		t.Errorf("Load error = %v", err)
	}
}
