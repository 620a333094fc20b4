// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"errors"
	"fmt"
)

var (
	// ErrOffsetOutOfRange is the panic value (wrapped) for payload access
	// outside the current data size. It marks a caller defect.
	ErrOffsetOutOfRange = errors.New("xbus: payload offset out of range")

	ErrInvalidLength   = errors.New("xbus: invalid length")
	ErrItemOverrun     = errors.New("xbus: data item exceeds payload")
	ErrMessageTooLarge = errors.New("xbus: message too large")
)

// ChecksumError is returned by the Decoder when a framed message fails its
// checksum. The raw frame is kept for diagnostics.
type ChecksumError struct {
	Expected uint8
	Got      uint8
	Raw      []byte
}

// Error implements the error interface
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Got)
}

// IsChecksumError reports whether err is (or wraps) a ChecksumError.
func IsChecksumError(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}
