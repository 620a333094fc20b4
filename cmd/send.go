// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/spf13/cobra"
)

var (
	sendCommand string
	sendMID     string
	sendData    string
	sendOutputs string
	sendReply   string
	sendTimeout int
	sendDryRun  bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one Xbus message",
	Long: `Build a message and write it to the connection.

A message is either a named command:
  goto_config       GotoConfig (0x30)
  goto_measurement  GotoMeasurement (0x10)
  reqdid            ReqDID (0x00)
  wakeup_ack        WakeUpAck (0x3F)
  reset             Reset (0x40)
  output_config     SetOutputConfiguration (0xC0) from --outputs

or a raw id with optional hex payload (--mid 0x12 --data "01 02 03").
Ids above 0xFD are sent with the extended id field.

--outputs takes comma separated id@frequency pairs, for example
"0x4020@100,0x8020@100". Without it output_config requests acceleration
and rate of turn at 100 Hz.

With --reply the command waits for a message with that id and prints it.

Examples:
  xbuscope send --port /dev/ttyUSB0 --command goto_config --reply 0x31
  xbuscope send --port /dev/ttyUSB0 --mid 0x1C --reply 0x1D
  xbuscope send --command output_config --outputs 0x4020@400 --dry-run`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendCommand, "command", "", "Named command (see above)")
	sendCmd.Flags().StringVar(&sendMID, "mid", "", "Raw message id (decimal or 0x hex)")
	sendCmd.Flags().StringVar(&sendData, "data", "", "Raw payload as hex, spaces allowed")
	sendCmd.Flags().StringVar(&sendOutputs, "outputs", "", "Output configuration for output_config")
	sendCmd.Flags().StringVar(&sendReply, "reply", "", "Wait for a reply with this message id")
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 2, "Timeout in seconds for --reply")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Print the frame without opening a connection")
}

// namedCommands maps --command values to builders
var namedCommands = map[string]func() *xbus.Message{
	"goto_config":      xbus.NewGotoConfig,
	"goto_measurement": xbus.NewGotoMeasurement,
	"reqdid":           xbus.NewReqDID,
	"wakeup_ack":       xbus.NewWakeUpAck,
	"reset":            xbus.NewReset,
}

// sendRequest is the parsed form of the send flags
type sendRequest struct {
	command string
	mid     string
	data    string
	outputs string
	bus     uint8
}

func commandNames() string {
	names := make([]string, 0, len(namedCommands)+1)
	for name := range namedCommands {
		names = append(names, name)
	}
	names = append(names, "output_config")
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// buildMessage turns a request into a frame addressed to r.bus
func buildMessage(r sendRequest) (*xbus.Message, error) {
	if r.data != "" && r.mid == "" {
		return nil, errors.New("--data requires --mid")
	}

	var m *xbus.Message
	switch {
	case r.command != "" && r.mid != "":
		return nil, errors.New("--command and --mid are mutually exclusive")

	case r.command == "output_config":
		config := xbus.DefaultOutputConfiguration
		if r.outputs != "" {
			var err error
			if config, err = parseOutputs(r.outputs); err != nil {
				return nil, err
			}
		}
		m = xbus.NewSetOutputConfiguration(config)

	case r.command != "":
		build, ok := namedCommands[r.command]
		if !ok {
			return nil, fmt.Errorf("unknown command %q (known: %s)", r.command, commandNames())
		}
		m = build()

	case r.mid != "":
		mid, err := parseMessageID(r.mid)
		if err != nil {
			return nil, err
		}
		payload, err := parseHexBytes(r.data)
		if err != nil {
			return nil, err
		}
		limit := xbus.MaxDataLen
		if mid >= xbus.ExtendedMessageID {
			limit -= xbus.ExtendedIDSize
		}
		if len(payload) > limit {
			return nil, fmt.Errorf("%w: %d payload bytes", xbus.ErrMessageTooLarge, len(payload))
		}
		m = xbus.NewMessage(len(payload), mid)
		if len(payload) > 0 {
			m.SetBuffer(payload, 0)
		}

	default:
		return nil, errors.New("either --command or --mid must be specified")
	}

	m.SetBusID(r.bus)
	return m, nil
}

// parseMessageID accepts decimal or 0x prefixed hex
func parseMessageID(s string) (xbus.MessageID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	if xbus.MessageID(v) == xbus.MidInvalidMessage {
		return 0, fmt.Errorf("message id 0x%04X is reserved", v)
	}
	return xbus.MessageID(v), nil
}

// parseHexBytes decodes hex with optional spaces, colons and a 0x prefix
func parseHexBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}

// parseOutputs parses "id@freq,id@freq"
func parseOutputs(s string) ([]xbus.OutputConfiguration, error) {
	var out []xbus.OutputConfiguration
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		idStr, freqStr, ok := strings.Cut(field, "@")
		if !ok {
			return nil, fmt.Errorf("output %q: want id@frequency", field)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("output %q: invalid id: %w", field, err)
		}
		freq, err := strconv.ParseUint(strings.TrimSpace(freqStr), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("output %q: invalid frequency: %w", field, err)
		}
		out = append(out, xbus.OutputConfiguration{
			ID:        xbus.DataIdentifier(id),
			Frequency: uint16(freq),
		})
	}
	if len(out) == 0 {
		return nil, errors.New("empty output configuration")
	}
	return out, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	m, err := buildMessage(sendRequest{
		command: sendCommand,
		mid:     sendMID,
		data:    sendData,
		outputs: sendOutputs,
		bus:     cfg.BusID,
	})
	if err != nil {
		return err
	}

	var reply xbus.MessageID
	if sendReply != "" {
		if reply, err = parseMessageID(sendReply); err != nil {
			return err
		}
	}

	fmt.Print(xbus.FormatMessage(m, time.Now()))
	fmt.Printf("  Frame: %s\n", m.HexString(0))
	if sendDryRun {
		return nil
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("Connection: %s\n", connInfo)

	if sendReply == "" {
		return sendMessage(conn, m)
	}

	events := make(chan streamEvent, 64)
	done := make(chan struct{})
	defer close(done)

	q := &requester{
		conn:    conn,
		events:  events,
		readErr: readStream(conn, events, done),
		timeout: time.Duration(sendTimeout) * time.Second,
	}
	got, err := q.request(m, reply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No reply: %v\n", err)
		return err
	}
	fmt.Printf("\nReply:\n")
	fmt.Print(xbus.FormatMessage(got, time.Now()))
	return nil
}
