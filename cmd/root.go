// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/xbuscope/internal/config"
	"github.com/Thermoquad/xbuscope/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	busID    int
	logLevel string

	// cfg is the resolved configuration: defaults, then file, then
	// environment, then any flag set on the command line
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "xbuscope",
	Short: "Xbus IMU Protocol Analyzer",
	Long: `xbuscope - A CLI tool for monitoring, capturing and sending Xbus messages.

Decodes the framing used by Xsens style inertial measurement units: preamble,
bus id, length (with extended length), message id (with extended id), payload
and an additive checksum. MTData2 payloads are listed item by item.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a TOML file (--config) and the XBUSCOPE_PORT,
XBUSCOPE_BAUD and XBUSCOPE_URL environment variables. Flags win.

For WebSocket authentication, the password is read from the XBUSCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&busID, "bus", 0xFF, "Bus id for sent messages (0xFF is the master bus)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
}

// loadSettings resolves cfg and installs the logger before any command runs
func loadSettings(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		loaded.Port = portName
	}
	if flags.Changed("baud") {
		loaded.Baud = baudRate
	}
	if flags.Changed("url") {
		loaded.URL = wsURL
	}
	if flags.Changed("username") {
		loaded.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("bus") {
		if busID < 0 || busID > 0xFF {
			return fmt.Errorf("--bus %d out of range (0-255)", busID)
		}
		loaded.BusID = uint8(busID)
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logging.Configure(cfg.LogLevel, cfg.LogNoColor)
	log.Debug().
		Str("config", configPath).
		Str("port", cfg.Port).
		Int("baud", cfg.Baud).
		Str("url", cfg.URL).
		Msg("settings loaded")
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
