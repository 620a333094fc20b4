// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"fmt"
	"strings"
	"time"
)

// Statistics tracks message statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalMessages     uint64
	ValidMessages     uint64
	ChecksumErrors    uint64
	DecodeErrors      uint64
	MalformedMessages uint64
	LengthMismatches  uint64
	ItemOverruns      uint64
	InvalidIDs        uint64
	ExtendedMessages  uint64
	BytesReceived     uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	ErrorRate   float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decoder result and the validation errors of its message
func (s *Statistics) Update(msg *Message, decodeErr error, validationErrors []ValidationError) {
	s.TotalMessages++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if IsChecksumError(decodeErr) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if msg != nil {
		s.BytesReceived += uint64(msg.TotalSize())
		if msg.header().has(shapeExtLength) {
			s.ExtendedMessages++
		}
	}

	if len(validationErrors) == 0 {
		s.ValidMessages++
		return
	}

	s.MalformedMessages++
	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyChecksum:
			s.ChecksumErrors++
		case AnomalyLengthMismatch, AnomalyTruncated, AnomalyExtLengthRange:
			s.LengthMismatches++
		case AnomalyItemOverrun:
			s.ItemOverruns++
		case AnomalyInvalidMessageID:
			s.InvalidIDs++
		}
	}
}

// ErrorCount returns the number of messages that failed decoding or validation
func (s *Statistics) ErrorCount() uint64 {
	return s.TotalMessages - s.ValidMessages
}

// CalculateRates calculates message and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.MessageRate = float64(s.TotalMessages) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

func (s *Statistics) percent(n uint64) float64 {
	if s.TotalMessages == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(s.TotalMessages)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(&sb, "Total Messages:  %8d\n", s.TotalMessages)
	fmt.Fprintf(&sb, "Valid Messages:  %8d (%.1f%%)\n", s.ValidMessages, s.percent(s.ValidMessages))

	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&sb, "Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, s.percent(s.ChecksumErrors))
	}
	if s.DecodeErrors > 0 {
		fmt.Fprintf(&sb, "Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, s.percent(s.DecodeErrors))
	}
	if s.MalformedMessages > 0 {
		fmt.Fprintf(&sb, "Malformed Msgs:  %8d (%.1f%%)\n", s.MalformedMessages, s.percent(s.MalformedMessages))
		if s.LengthMismatches > 0 {
			fmt.Fprintf(&sb, "  Length Mismatch:  %5d\n", s.LengthMismatches)
		}
		if s.ItemOverruns > 0 {
			fmt.Fprintf(&sb, "  Item Overrun:     %5d\n", s.ItemOverruns)
		}
		if s.InvalidIDs > 0 {
			fmt.Fprintf(&sb, "  Invalid ID:       %5d\n", s.InvalidIDs)
		}
	}
	if s.ExtendedMessages > 0 {
		fmt.Fprintf(&sb, "Extended Length: %8d\n", s.ExtendedMessages)
	}

	fmt.Fprintf(&sb, "Bytes Received:  %8d\n", s.BytesReceived)
	fmt.Fprintf(&sb, "Message Rate:    %8.1f msgs/sec\n", s.MessageRate)
	fmt.Fprintf(&sb, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	sb.WriteString("================================\n")

	return sb.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
