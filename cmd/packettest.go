// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
	packetTestRequest bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Xbus message",
	Long: `Wait for a valid Xbus message on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any message
that passes the checksum. Bytes before the first preamble and frames with a
bad checksum are skipped.

With --request a device id request (ReqDID) is sent first, so an idle device
in configuration mode still answers.

Exit codes:
  0 - Message received before timeout
  1 - Timeout reached without receiving a valid message
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a message")
	packetTestCmd.Flags().BoolVar(&packetTestRequest, "request", false, "Send ReqDID before waiting")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbuscope - Message Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)

	if packetTestRequest {
		req := xbus.NewReqDID()
		req.SetBusID(cfg.BusID)
		if err := sendMessage(conn, req); err != nil {
			fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
			os.Exit(2)
		}
	}
	fmt.Printf("Waiting for valid Xbus message...\n\n")

	events := make(chan streamEvent, 16)
	done := make(chan struct{})
	defer close(done)
	readErr := readStream(conn, events, done)

	timeout := time.After(time.Duration(packetTestTimeout) * time.Second)
	rejected := 0
	for {
		select {
		case ev := <-events:
			if ev.err != nil {
				rejected++
				continue
			}
			if rejected > 0 {
				fmt.Printf("(rejected %d frames before the first valid one)\n", rejected)
			}
			m := ev.msg
			fmt.Printf("SUCCESS: Received valid message\n")
			fmt.Printf("  ID: %s (0x%02X)\n", xbus.MessageIDName(m.MessageID()), uint16(m.MessageID()))
			fmt.Printf("  Bus: 0x%02X\n", m.BusID())
			fmt.Printf("  Length: %d bytes\n", m.DataSize())
			fmt.Printf("  Checksum: 0x%02X\n", m.Checksum())
			os.Exit(0)

		case err := <-readErr:
			if err == nil {
				err = ErrConnectionClosed
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-timeout:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid message received within %d seconds\n", packetTestTimeout)
			os.Exit(1)
		}
	}
}
