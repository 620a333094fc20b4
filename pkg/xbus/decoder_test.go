// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"bytes"
	"errors"
	"testing"
)

// decodeAll feeds data through a fresh decoder
func decodeAll(data []byte) ([]*Message, []error) {
	return NewDecoder().Decode(data)
}

// ============================================================
// Decoder
// ============================================================

func TestDecoder_SingleMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"empty payload", NewGotoConfig()},
		{"short payload", NewSetOutputConfiguration(DefaultOutputConfiguration)},
		{"extended id", NewMessage(7, 0x0456)},
		{"extended length", NewMessage(600, MidMTData2)},
		{"extended length and id", NewMessage(1000, 0x0789)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fillPattern(tt.msg)
			msgs, errs := decodeAll(tt.msg.Bytes())
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if len(msgs) != 1 {
				t.Fatalf("got %d messages, want 1", len(msgs))
			}
			if !msgs[0].Equal(tt.msg) {
				t.Errorf("decoded % X\nwant    % X", msgs[0].Bytes(), tt.msg.Bytes())
			}
		})
	}
}

func TestDecoder_SkipsGarbage(t *testing.T) {
	msg := NewMessage(3, MidDeviceID)
	msg.SetShort(0xBEEF, 0)

	stream := append([]byte{0x00, 0x13, 0x37, 0xFF}, msg.Bytes()...)
	msgs, errs := decodeAll(stream)

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != 1 || !msgs[0].Equal(msg) {
		t.Fatalf("expected exactly the framed message, got %d", len(msgs))
	}
}

func TestDecoder_BackToBack(t *testing.T) {
	var stream []byte
	want := []*Message{NewGotoConfig(), NewReqDID(), NewMessage(20, MidMTData2), NewGotoMeasurement()}
	for _, m := range want {
		stream = append(stream, m.Bytes()...)
	}

	msgs, errs := decodeAll(stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if !msgs[i].Equal(want[i]) {
			t.Errorf("message %d mismatch", i)
		}
	}
}

func TestDecoder_ChecksumError(t *testing.T) {
	raw := NewMessage(4, MidDeviceID).Bytes()
	raw[len(raw)-1] ^= 0x55

	msgs, errs := decodeAll(raw)
	if len(msgs) != 0 {
		t.Fatalf("corrupted frame decoded")
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !IsChecksumError(errs[0]) {
		t.Fatalf("expected ChecksumError, got %v", errs[0])
	}

	var ce *ChecksumError
	errors.As(errs[0], &ce)
	if ce.Got != raw[len(raw)-1] {
		t.Errorf("Got = 0x%02X, want 0x%02X", ce.Got, raw[len(raw)-1])
	}
	if !bytes.Equal(ce.Raw, raw) {
		t.Errorf("Raw = % X", ce.Raw)
	}
}

func TestDecoder_RecoversAfterError(t *testing.T) {
	bad := NewMessage(2, MidDeviceID).Bytes()
	bad[4] ^= 0x01
	good := NewMessage(0, MidGotoConfigAck)

	stream := append(bad, good.Bytes()...)
	msgs, errs := decodeAll(stream)

	if len(errs) != 1 {
		t.Errorf("got %d errors, want 1", len(errs))
	}
	if len(msgs) != 1 || !msgs[0].Equal(good) {
		t.Fatalf("decoder did not recover")
	}
}

func TestDecoder_InvalidExtendedLength(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"below 255", []byte{0xFA, 0xFF, 0xFF, 0x00, 0xFE}},
		{"above max", []byte{0xFA, 0xFF, 0xFF, 0x20, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			var err error
			for _, b := range tt.raw {
				if _, e := d.DecodeByte(b); e != nil {
					err = e
				}
			}
			if !errors.Is(err, ErrInvalidLength) {
				t.Fatalf("expected ErrInvalidLength, got %v", err)
			}
			if d.state != stateIdle {
				t.Errorf("decoder not reset, state %d", d.state)
			}
		})
	}
}

func TestDecoder_ExtendedLengthOrder(t *testing.T) {
	// Length sentinel, two length bytes, then the id byte
	raw := append([]byte{0xFA, 0xFF, 0xFF, 0x01, 0x00, 0x36}, make([]byte, 256)...)
	raw = withChecksum(append(raw, 0x00))

	msgs, errs := decodeAll(raw)
	if len(errs) != 0 || len(msgs) != 1 {
		t.Fatalf("got %d messages, errors %v", len(msgs), errs)
	}
	if msgs[0].MessageID() != MidMTData2 || msgs[0].DataSize() != 256 {
		t.Errorf("MessageID() = 0x%X DataSize() = %d", msgs[0].MessageID(), msgs[0].DataSize())
	}
}

func TestDecoder_RawBytes(t *testing.T) {
	d := NewDecoder()
	for _, b := range []byte{0x01, 0x02, Preamble, 0xFF} {
		if _, err := d.DecodeByte(b); err != nil {
			t.Fatalf("DecodeByte: %v", err)
		}
	}
	if got := d.RawBytes(); !bytes.Equal(got, []byte{0x01, 0x02, Preamble, 0xFF}) {
		t.Errorf("RawBytes() = % X", got)
	}

	d.Reset()
	if len(d.RawBytes()) != 0 {
		t.Error("Reset did not clear raw bytes")
	}
}

func TestDecoder_RawBytesBounded(t *testing.T) {
	d := NewDecoder()
	for i := 0; i < 3*MaxMessageLen; i++ {
		d.DecodeByte(0x55)
	}
	if n := len(d.RawBytes()); n > MaxMessageLen+1 {
		t.Errorf("RawBytes grew to %d bytes on garbage", n)
	}

	msgs, errs := d.Decode(NewReqDID().Bytes())
	if len(msgs) != 1 || len(errs) != 0 {
		t.Errorf("decoder lost sync after garbage: %d messages, %v", len(msgs), errs)
	}
}

func TestDecoder_PartialFrame(t *testing.T) {
	raw := NewMessage(10, MidMTData2).Bytes()
	d := NewDecoder()

	msgs, errs := d.Decode(raw[:8])
	if len(msgs) != 0 || len(errs) != 0 {
		t.Fatal("partial frame produced output")
	}
	msgs, errs = d.Decode(raw[8:])
	if len(errs) != 0 || len(msgs) != 1 {
		t.Fatalf("split frame: %d messages, %v", len(msgs), errs)
	}
}
