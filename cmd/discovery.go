// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	discoveryTimeout int
	discoveryMeasure bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Identify the device on the bus",
	Long: `Put the device in configuration mode and read its identity.

Sends, waiting for each answer in turn:
  GotoConfig           -> GotoConfigAck
  ReqDID               -> DeviceID
  ReqProductCode       -> ProductCode
  ReqFirmwareRevision  -> FirmwareRevision

The device stops streaming while in configuration mode. Use --measure to send
GotoMeasurement afterwards.

Examples:
  xbuscope discovery --port /dev/ttyUSB0 --baud 115200
  xbuscope discovery --url ws://gateway.local/xbus --measure

Exit codes:
  0 - Device identified
  1 - Device did not answer in time or reported an error
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 2, "Timeout in seconds for each answer")
	discoveryCmd.Flags().BoolVar(&discoveryMeasure, "measure", false, "Return to measurement mode when done")
}

// errDeviceError is returned when the device answers with an Error message
var errDeviceError = errors.New("device reported an error")

// deviceInfo is what discovery learns about a device
type deviceInfo struct {
	busID       uint8
	deviceID    uint32
	productCode string
	firmware    string
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("xbuscope - Device Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Bus: 0x%02X\n", cfg.BusID)
	fmt.Printf("Timeout: %d seconds per request\n\n", discoveryTimeout)

	events := make(chan streamEvent, 64)
	done := make(chan struct{})
	defer close(done)
	readErr := readStream(conn, events, done)

	q := &requester{
		conn:    conn,
		events:  events,
		readErr: readErr,
		timeout: time.Duration(discoveryTimeout) * time.Second,
	}

	info, err := q.identify()
	if err != nil {
		var connErr *connectionError
		if errors.As(err, &connErr) {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDevice found:\n")
	fmt.Printf("  Bus: 0x%02X\n", info.busID)
	fmt.Printf("  Device ID: %08X\n", info.deviceID)
	if info.productCode != "" {
		fmt.Printf("  Product code: %s\n", info.productCode)
	}
	if info.firmware != "" {
		fmt.Printf("  Firmware: %s\n", info.firmware)
	}

	if discoveryMeasure {
		if _, err := q.request(xbus.NewGotoMeasurement(), xbus.MidGotoMeasurementAck); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nDevice returned to measurement mode\n")
	}

	return nil
}

// connectionError marks failures of the link rather than the device
type connectionError struct {
	err error
}

func (e *connectionError) Error() string { return e.err.Error() }
func (e *connectionError) Unwrap() error { return e.err }

// requester sends a request and waits for a reply with a given id. Other
// traffic, such as MTData2 still in flight, is skipped.
type requester struct {
	conn    Connection
	events  <-chan streamEvent
	readErr <-chan error
	timeout time.Duration
}

func (q *requester) request(req *xbus.Message, want xbus.MessageID) (*xbus.Message, error) {
	req.SetBusID(cfg.BusID)
	if err := sendMessage(q.conn, req); err != nil {
		return nil, &connectionError{err: err}
	}

	deadline := time.After(q.timeout)
	for {
		select {
		case ev := <-q.events:
			if ev.err != nil {
				log.Debug().Err(ev.err).Msg("skipping bad frame")
				continue
			}
			switch ev.msg.MessageID() {
			case want:
				return ev.msg, nil
			case xbus.MidError:
				code := -1
				if ev.msg.DataSize() > 0 {
					code = int(ev.msg.Byte(0))
				}
				return nil, fmt.Errorf("%w: %s answered with error code %d",
					errDeviceError, xbus.MessageIDName(req.MessageID()), code)
			}

		case err := <-q.readErr:
			if err == nil {
				err = ErrConnectionClosed
			}
			return nil, &connectionError{err: err}

		case <-deadline:
			return nil, fmt.Errorf("no %s within %s", xbus.MessageIDName(want), q.timeout)
		}
	}
}

func (q *requester) identify() (deviceInfo, error) {
	var info deviceInfo

	fmt.Printf("Sending GotoConfig...\n")
	if _, err := q.request(xbus.NewGotoConfig(), xbus.MidGotoConfigAck); err != nil {
		return info, err
	}

	fmt.Printf("Sending ReqDID...\n")
	reply, err := q.request(xbus.NewReqDID(), xbus.MidDeviceID)
	if err != nil {
		return info, err
	}
	if reply.DataSize() < 4 {
		return info, fmt.Errorf("DeviceID payload is %d bytes, want 4", reply.DataSize())
	}
	info.busID = reply.BusID()
	info.deviceID = reply.Long(0)

	// Product code and firmware revision are optional on older devices
	fmt.Printf("Sending ReqProductCode...\n")
	if reply, err := q.request(xbus.NewMessage(0, xbus.MidReqProductCode), xbus.MidProductCode); err == nil {
		info.productCode = strings.TrimRight(string(reply.Payload()), "\x00 ")
	} else {
		log.Warn().Err(err).Msg("product code unavailable")
	}

	fmt.Printf("Sending ReqFirmwareRevision...\n")
	if reply, err := q.request(xbus.NewMessage(0, xbus.MidReqFirmwareRevision), xbus.MidFirmwareRevision); err == nil {
		info.firmware = formatFirmware(reply)
	} else {
		log.Warn().Err(err).Msg("firmware revision unavailable")
	}

	return info, nil
}

// formatFirmware renders major.minor.revision from the first three bytes
func formatFirmware(m *xbus.Message) string {
	if m.DataSize() < 3 {
		return m.HexString(0)
	}
	return fmt.Sprintf("%d.%d.%d", m.Byte(0), m.Byte(1), m.Byte(2))
}
