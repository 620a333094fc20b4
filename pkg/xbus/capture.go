// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture files are a CBOR sequence: one CaptureHeader followed by any
// number of CaptureRecords, each holding one raw frame.

const (
	captureFormat  = "xbus-capture"
	captureVersion = 1
)

// ErrNotCapture is returned when a stream does not start with a capture header
var ErrNotCapture = errors.New("xbus: not a capture stream")

// CaptureHeader opens a capture stream
type CaptureHeader struct {
	Format  string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
	Started int64  `cbor:"3,keyasint"` // Unix nanoseconds
	Source  string `cbor:"4,keyasint,omitempty"`
}

// CaptureRecord is one captured frame
type CaptureRecord struct {
	TimeNs int64  `cbor:"1,keyasint"` // Unix nanoseconds
	Raw    []byte `cbor:"2,keyasint"`
}

// Time returns the capture timestamp
func (r CaptureRecord) Time() time.Time {
	return time.Unix(0, r.TimeNs)
}

// Message loads the captured frame
func (r CaptureRecord) Message() *Message {
	return LoadMessage(r.Raw)
}

// CaptureWriter appends messages to a capture stream
type CaptureWriter struct {
	enc   *cbor.Encoder
	count int
}

// NewCaptureWriter writes a capture header to w and returns a writer for
// the records that follow. source describes where the frames came from.
func NewCaptureWriter(w io.Writer, source string) (*CaptureWriter, error) {
	enc := cbor.NewEncoder(w)
	hdr := CaptureHeader{
		Format:  captureFormat,
		Version: captureVersion,
		Started: time.Now().UnixNano(),
		Source:  source,
	}
	if err := enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CaptureWriter{enc: enc}, nil
}

// Write records m as received at t
func (cw *CaptureWriter) Write(m *Message, t time.Time) error {
	rec := CaptureRecord{TimeNs: t.UnixNano(), Raw: m.Bytes()}
	if err := cw.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record %d: %w", cw.count, err)
	}
	cw.count++
	return nil
}

// Count returns the number of records written
func (cw *CaptureWriter) Count() int {
	return cw.count
}

// CaptureReader reads back a capture stream
type CaptureReader struct {
	dec    *cbor.Decoder
	header CaptureHeader
}

// NewCaptureReader reads and checks the capture header from r
func NewCaptureReader(r io.Reader) (*CaptureReader, error) {
	dec := cbor.NewDecoder(r)

	var hdr CaptureHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if hdr.Format != captureFormat {
		return nil, fmt.Errorf("%w: format %q", ErrNotCapture, hdr.Format)
	}
	if hdr.Version != captureVersion {
		return nil, fmt.Errorf("unsupported capture version %d", hdr.Version)
	}

	return &CaptureReader{dec: dec, header: hdr}, nil
}

// Header returns the capture header
func (cr *CaptureReader) Header() CaptureHeader {
	return cr.header
}

// Next returns the next record, or io.EOF at the end of the stream
func (cr *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := cr.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}
