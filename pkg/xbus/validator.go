// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"errors"
	"fmt"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyTruncated AnomalyType = iota
	AnomalyBadPreamble
	AnomalyExtLengthRange
	AnomalyLengthMismatch
	AnomalyChecksum
	AnomalyInvalidMessageID
	AnomalyItemOverrun
	AnomalyDecodeError
)

var anomalyNames = map[AnomalyType]string{
	AnomalyTruncated:        "truncated",
	AnomalyBadPreamble:      "bad preamble",
	AnomalyExtLengthRange:   "extended length out of range",
	AnomalyLengthMismatch:   "length mismatch",
	AnomalyChecksum:         "checksum",
	AnomalyInvalidMessageID: "invalid message id",
	AnomalyItemOverrun:      "item overrun",
	AnomalyDecodeError:      "decode error",
}

func (a AnomalyType) String() string {
	if name, ok := anomalyNames[a]; ok {
		return name
	}
	return fmt.Sprintf("anomaly(%d)", int(a))
}

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks the structure of m without trusting its header.
// Returns a slice of validation errors (empty if the message is valid).
func ValidateMessage(m *Message) []ValidationError {
	errs := []ValidationError{}
	buf := m.buf

	if len(buf) < HeaderSizeCS {
		return []ValidationError{{
			Type:    AnomalyTruncated,
			Message: fmt.Sprintf("Frame too short (%d bytes, minimum %d)", len(buf), HeaderSizeCS),
			Details: map[string]interface{}{"length": len(buf), "minimum": HeaderSizeCS},
		}}
	}

	if buf[0] != Preamble {
		errs = append(errs, ValidationError{
			Type:    AnomalyBadPreamble,
			Message: fmt.Sprintf("Bad preamble 0x%02X (expected 0x%02X)", buf[0], Preamble),
			Details: map[string]interface{}{"preamble": buf[0]},
		})
	}

	if buf[2] == ExtLenCode {
		if len(buf) < ExtHeaderSizeCS {
			return append(errs, ValidationError{
				Type:    AnomalyTruncated,
				Message: fmt.Sprintf("Extended frame too short (%d bytes, minimum %d)", len(buf), ExtHeaderSizeCS),
				Details: map[string]interface{}{"length": len(buf), "minimum": ExtHeaderSizeCS},
			})
		}
		ext := int(buf[3])<<8 | int(buf[4])
		if ext < minExtendedDataSize || ext > MaxMessageLen {
			return append(errs, ValidationError{
				Type:    AnomalyExtLengthRange,
				Message: fmt.Sprintf("Extended length %d outside [%d, %d]", ext, minExtendedDataSize, MaxMessageLen),
				Details: map[string]interface{}{"length": ext, "min": minExtendedDataSize, "max": MaxMessageLen},
			})
		}
	}

	h := m.header()
	if !h.ok {
		return append(errs, ValidationError{
			Type:    AnomalyTruncated,
			Message: fmt.Sprintf("Declared frame does not fit in %d bytes", len(buf)),
			Details: map[string]interface{}{"length": len(buf)},
		})
	}

	if h.totalSize() != len(buf) {
		errs = append(errs, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("Length mismatch: received=%d, declared=%d", len(buf), h.totalSize()),
			Details: map[string]interface{}{"received": len(buf), "declared": h.totalSize()},
		})
	}

	if m.MessageID() == MidInvalidMessage {
		errs = append(errs, ValidationError{
			Type:    AnomalyInvalidMessageID,
			Message: "Extended message id without room for the id field",
			Details: map[string]interface{}{"data_size": h.dataSize},
		})
	}

	if !m.IsChecksumOK() {
		errs = append(errs, ValidationError{
			Type: AnomalyChecksum,
			Message: fmt.Sprintf("Checksum mismatch: expected 0x%02X, got 0x%02X",
				m.ComputeChecksum(), m.Checksum()),
			Details: map[string]interface{}{"expected": m.ComputeChecksum(), "got": m.Checksum()},
		})
	}

	if m.MessageID() == MidMTData2 {
		if _, err := m.DataItems(); errors.Is(err, ErrItemOverrun) {
			errs = append(errs, ValidationError{
				Type:    AnomalyItemOverrun,
				Message: err.Error(),
				Details: map[string]interface{}{"data_size": m.DataSize()},
			})
		}
	}

	return errs
}
