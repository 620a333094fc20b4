// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw message log in human-readable format",
	Long: `Continuously decode and display Xbus messages as they arrive.

Each message is printed with timestamp, message id, bus id and decoded
payload. MTData2 messages are listed item by item; other payloads are shown
as a hex dump.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print the raw frame bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("xbuscope - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	events := make(chan streamEvent, 64)
	done := make(chan struct{})
	defer close(done)
	readErr := readStream(conn, events, done)

	for {
		select {
		case ev := <-events:
			printRawEvent(os.Stdout, ev)

		case err := <-readErr:
			if err != nil {
				return err
			}
			log.Info().Msg("connection closed")
			return nil

		case <-interrupt:
			return nil
		}
	}
}

func printRawEvent(w io.Writer, ev streamEvent) {
	if ev.err != nil {
		fmt.Fprintf(w, "[ERROR] %v\n", ev.err)
		return
	}
	fmt.Fprint(w, xbus.FormatMessage(ev.msg, ev.at))
	if rawLogHex {
		fmt.Fprintf(w, "  Raw: %s\n", ev.msg.HexString(0))
	}
}
