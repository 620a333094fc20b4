// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import "fmt"

// Decoder states
const (
	stateIdle = iota
	stateBus
	stateLength
	stateExtLengthHigh
	stateExtLengthLow
	stateMessageID
	stateData
	stateChecksum
)

// Decoder splits a byte stream into Xbus messages
type Decoder struct {
	state     int
	frame     []byte
	remaining int    // Data bytes still expected
	rawBuffer []byte // Every byte seen since the last complete message
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		frame:     make([]byte, 0, MaxMessageLen),
		rawBuffer: make([]byte, 0, MaxMessageLen),
	}
}

// Reset discards any partial message and returns to hunting for a preamble
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.frame = d.frame[:0]
	d.remaining = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// RawBytes returns the bytes accumulated since the last complete message,
// including any garbage skipped before its preamble.
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte feeds one byte through the decoder state machine.
// It returns a message once a full frame with a valid checksum has been
// read, nil while a frame is incomplete, and an error when a frame is
// rejected. After an error the decoder is back in the idle state.
func (d *Decoder) DecodeByte(b byte) (*Message, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	switch d.state {
	case stateIdle:
		if b != Preamble {
			// Keep at most one frame worth of garbage
			if len(d.rawBuffer) > MaxMessageLen {
				d.rawBuffer = append(d.rawBuffer[:0], b)
			}
			return nil, nil
		}
		d.frame = append(d.frame[:0], b)
		d.state = stateBus
		return nil, nil

	case stateBus:
		d.frame = append(d.frame, b)
		d.state = stateLength
		return nil, nil

	case stateLength:
		d.frame = append(d.frame, b)
		d.remaining = int(b)
		if b == ExtLenCode {
			d.state = stateExtLengthHigh
		} else {
			d.state = stateMessageID
		}
		return nil, nil

	case stateExtLengthHigh:
		d.frame = append(d.frame, b)
		d.remaining = int(b) << 8
		d.state = stateExtLengthLow
		return nil, nil

	case stateExtLengthLow:
		d.frame = append(d.frame, b)
		d.remaining |= int(b)
		if d.remaining < minExtendedDataSize || d.remaining > MaxMessageLen {
			n := d.remaining
			d.Reset()
			return nil, fmt.Errorf("%w: extended length %d outside [%d, %d]",
				ErrInvalidLength, n, minExtendedDataSize, MaxMessageLen)
		}
		d.state = stateMessageID
		return nil, nil

	case stateMessageID:
		d.frame = append(d.frame, b)
		if d.remaining == 0 {
			d.state = stateChecksum
		} else {
			d.state = stateData
		}
		return nil, nil

	case stateData:
		d.frame = append(d.frame, b)
		d.remaining--
		if d.remaining == 0 {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		d.frame = append(d.frame, b)
		msg := LoadMessage(d.frame)
		if !msg.IsChecksumOK() {
			err := &ChecksumError{
				Expected: msg.ComputeChecksum(),
				Got:      b,
				Raw:      msg.Bytes(),
			}
			d.Reset()
			return nil, err
		}
		d.Reset()
		return msg, nil

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", state)
	}
}

// Decode feeds a chunk of bytes through the decoder, returning every
// message completed by it together with any errors encountered on the way.
func (d *Decoder) Decode(data []byte) ([]*Message, []error) {
	var msgs []*Message
	var errs []error
	for _, b := range data {
		msg, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs, errs
}
