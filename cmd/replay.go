// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/spf13/cobra"
)

var (
	replayValidate bool
	replayRealtime bool
	replaySpeed    float64
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Print the messages of a capture file",
	Long: `Read a capture file written by the capture command and print each
message as raw_log would.

With --validate every message is checked and a statistics summary follows.
With --realtime records are paced by their capture timestamps, scaled by
--speed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayValidate, "validate", false, "Validate messages and print statistics")
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Pace output by capture timestamps")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed for --realtime")
}

type replayOptions struct {
	validate bool
	realtime bool
	speed    float64
	sleep    func(time.Duration)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	return replayCapture(f, os.Stdout, replayOptions{
		validate: replayValidate,
		realtime: replayRealtime,
		speed:    replaySpeed,
		sleep:    time.Sleep,
	})
}

// replayCapture writes every record of the capture in r to w
func replayCapture(r io.Reader, w io.Writer, opts replayOptions) error {
	cr, err := xbus.NewCaptureReader(r)
	if err != nil {
		return err
	}
	if opts.speed <= 0 {
		return fmt.Errorf("invalid speed %g", opts.speed)
	}

	hdr := cr.Header()
	fmt.Fprintf(w, "Capture: %s\n", hdr.Source)
	fmt.Fprintf(w, "Started: %s\n\n", time.Unix(0, hdr.Started).Format(time.RFC3339))

	var stats *xbus.Statistics
	if opts.validate {
		stats = xbus.NewStatistics()
	}

	var prev time.Time
	for {
		rec, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		at := rec.Time()
		if opts.realtime && !prev.IsZero() && at.After(prev) && opts.sleep != nil {
			opts.sleep(time.Duration(float64(at.Sub(prev)) / opts.speed))
		}
		prev = at

		m := rec.Message()
		fmt.Fprint(w, xbus.FormatMessage(m, at))

		if stats != nil {
			errs := xbus.ValidateMessage(m)
			stats.Update(m, nil, errs)
			for _, v := range errs {
				fmt.Fprintf(w, "  ! %s\n", v.Message)
			}
		}
	}

	if stats != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, stats.String())
	}
	return nil
}
