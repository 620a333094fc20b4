// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	captureOutput   string
	captureDuration time.Duration
	captureCount    int
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record messages to a capture file",
	Long: `Record every message that passes the checksum to a CBOR capture file.

The file holds a header followed by one record per message with its
receive time and the raw frame. Play it back with the replay command.

The output path comes from --output, then capture_path in the config file,
then defaults to xbus-<timestamp>.cbor in the current directory.

Recording stops on Ctrl+C, after --duration, or after --count messages.`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "Capture file path")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 = no limit)")
	captureCmd.Flags().IntVar(&captureCount, "count", 0, "Stop after this many messages (0 = no limit)")
}

func capturePath() string {
	switch {
	case captureOutput != "":
		return captureOutput
	case cfg.CapturePath != "":
		return cfg.CapturePath
	default:
		return fmt.Sprintf("xbus-%s.cbor", time.Now().Format("20060102-150405"))
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := capturePath()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create capture file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw, err := xbus.NewCaptureWriter(bw, connInfo)
	if err != nil {
		return err
	}

	fmt.Printf("xbuscope - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", path)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	var deadline <-chan time.Time
	if captureDuration > 0 {
		deadline = time.After(captureDuration)
	}

	progress := time.NewTicker(5 * time.Second)
	defer progress.Stop()

	events := make(chan streamEvent, 256)
	done := make(chan struct{})
	defer close(done)
	readErr := readStream(conn, events, done)

	dropped := 0
	finish := func(reason string) error {
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to flush capture file: %w", err)
		}
		fmt.Printf("\nCapture stopped (%s): %d messages, %d frames dropped\n", reason, cw.Count(), dropped)
		return nil
	}

loop:
	for {
		select {
		case ev := <-events:
			if ev.err != nil {
				dropped++
				log.Debug().Err(ev.err).Msg("dropping frame")
				continue
			}
			if err := cw.Write(ev.msg, ev.at); err != nil {
				return err
			}
			if captureCount > 0 && cw.Count() >= captureCount {
				return finish("count reached")
			}

		case <-progress.C:
			log.Info().Int("messages", cw.Count()).Int("dropped", dropped).Msg("capturing")

		case err := <-readErr:
			if ferr := finish("connection closed"); ferr != nil {
				return ferr
			}
			return err

		case <-deadline:
			break loop

		case <-interrupt:
			return finish("interrupted")
		}
	}

	return finish("duration elapsed")
}
