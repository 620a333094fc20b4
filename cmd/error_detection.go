// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval time.Duration
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed messages and errors",
	Long: `Track message errors and malformed frames with statistics.

This command validates each message and detects:
  - Checksum errors and invalid extended lengths
  - Length mismatches and truncated frames
  - Extended message ids without room for the id field
  - MTData2 items that overrun the payload
  - Statistics and trends (message rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid messages too.

Messages are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().DurationVar(&statsInterval, "stats-interval", 0, "Statistics update interval (default from config)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		statsInterval = cfg.StatsInterval
	}

	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// syncTracker ignores decode errors until the first good frame. Bytes seen
// before that point are line noise, not protocol errors.
type syncTracker struct {
	synchronized bool
	skipped      int
}

// observe reports whether ev should be counted and whether it completed sync
func (s *syncTracker) observe(ev streamEvent) (count, synced bool) {
	if s.synchronized {
		return true, false
	}
	if ev.err != nil {
		s.skipped++
		return false, false
	}
	s.synchronized = true
	return true, true
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(w io.Writer, ev streamEvent) {
	timestamp := ev.at.Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, ev.err)
	var cs *xbus.ChecksumError
	if errors.As(ev.err, &cs) {
		fmt.Fprintf(w, "  Frame: % X\n", cs.Raw)
	}
	fmt.Fprintf(w, "  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(w io.Writer, m *xbus.Message, at time.Time, errs []xbus.ValidationError) {
	timestamp := at.Format("15:04:05.000")
	mid := m.MessageID()

	fmt.Fprintf(w, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, xbus.MessageIDName(mid), uint16(mid))
	if m.IsChecksumOK() {
		fmt.Fprintf(w, "  Checksum: \033[1;32mOK\033[0m\n")
	}

	for i, err := range errs {
		switch err.Type {
		case xbus.AnomalyLengthMismatch:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if received, ok := err.Details["received"].(int); ok {
				if declared, ok := err.Details["declared"].(int); ok {
					fmt.Fprintf(w, "    Length: received=%d, declared=%d\n", received, declared)
				}
			}

		case xbus.AnomalyExtLengthRange, xbus.AnomalyTruncated, xbus.AnomalyChecksum:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case xbus.AnomalyItemOverrun, xbus.AnomalyInvalidMessageID:
			fmt.Fprintf(w, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if size, ok := err.Details["data_size"].(int); ok {
				fmt.Fprintf(w, "    Payload: %d bytes\n", size)
			}

		default:
			fmt.Fprintf(w, "  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Fprintf(w, "  Frame: %s\n", m.HexString(48))
	fmt.Fprintf(w, "  >>> MESSAGE REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	events := make(chan streamEvent, 64)
	done := make(chan struct{})
	defer close(done)
	readErr := readStream(conn, events, done)

	go func() {
		var tracker syncTracker
		for {
			select {
			case ev := <-events:
				count, synced := tracker.observe(ev)
				if synced {
					p.Send(syncMsg{invalidFrames: tracker.skipped})
				}
				if !count {
					continue
				}
				msg := serialDataMsg{decodeErr: ev.err, at: ev.at}
				if ev.msg != nil {
					msg.message = ev.msg
					msg.validationErrors = xbus.ValidateMessage(ev.msg)
				}
				p.Send(msg)

			case err := <-readErr:
				p.Send(connectionLostMsg{err: err})
				return

			case <-done:
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string) error {
	out := os.Stdout

	fmt.Fprintf(out, "xbuscope - Error Detection Mode\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %s\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All messages\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	stats := xbus.NewStatistics()
	var tracker syncTracker

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

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
			count, synced := tracker.observe(ev)
			if synced {
				if tracker.skipped > 0 {
					fmt.Fprintf(out, "[SYNC] Synchronized after dropping %d frames\n\n", tracker.skipped)
				} else {
					fmt.Fprintf(out, "[SYNC] Synchronized\n\n")
				}
			}
			if !count {
				continue
			}
			handleTextEvent(out, stats, ev)

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			fmt.Fprintln(out)

		case err := <-readErr:
			fmt.Fprint(out, stats.String())
			if err != nil {
				return err
			}
			log.Info().Msg("connection closed")
			return nil

		case <-interrupt:
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			return nil
		}
	}
}

func handleTextEvent(w io.Writer, stats *xbus.Statistics, ev streamEvent) {
	if ev.err != nil {
		stats.Update(nil, ev.err, nil)
		printDecodeError(w, ev)
		return
	}

	validationErrors := xbus.ValidateMessage(ev.msg)
	stats.Update(ev.msg, nil, validationErrors)

	switch {
	case len(validationErrors) > 0:
		printValidationErrors(w, ev.msg, ev.at, validationErrors)
	case ev.msg.MessageID() == xbus.MidError:
		// Device errors are always shown
		fmt.Fprint(w, xbus.FormatMessage(ev.msg, ev.at))
	case showAll:
		fmt.Fprint(w, xbus.FormatMessage(ev.msg, ev.at))
	}
}
