// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"encoding/binary"
	"math"
)

// All multi-byte payload values are big-endian on the wire. Readers panic
// when the value does not lie entirely inside the payload; writers grow the
// payload as needed.

// Byte reads one payload byte.
func (m *Message) Byte(offset int) uint8 {
	return m.buf[m.mustIndex(offset, 1)]
}

// Short reads a 16-bit value.
func (m *Message) Short(offset int) uint16 {
	i := m.mustIndex(offset, 2)
	return binary.BigEndian.Uint16(m.buf[i:])
}

// Long reads a 32-bit value.
func (m *Message) Long(offset int) uint32 {
	i := m.mustIndex(offset, 4)
	return binary.BigEndian.Uint32(m.buf[i:])
}

// LongLong reads a 64-bit value.
func (m *Message) LongLong(offset int) uint64 {
	i := m.mustIndex(offset, 8)
	return binary.BigEndian.Uint64(m.buf[i:])
}

// Float reads an IEEE-754 single.
func (m *Message) Float(offset int) float32 {
	return math.Float32frombits(m.Long(offset))
}

// Double reads an IEEE-754 double.
func (m *Message) Double(offset int) float64 {
	return math.Float64frombits(m.LongLong(offset))
}

// Buffer returns a copy of n payload bytes starting at offset.
func (m *Message) Buffer(offset, n int) []byte {
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	i := m.mustIndex(offset, n)
	copy(out, m.buf[i:i+n])
	return out
}

// SetByte writes an 8-bit value, growing the payload if offset is past its end.
func (m *Message) SetByte(v uint8, offset int) {
	m.writeData(offset, []byte{v})
}

// SetShort writes a 16-bit value.
func (m *Message) SetShort(v uint16, offset int) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	m.writeData(offset, b[:])
}

// SetLong writes a 32-bit value.
func (m *Message) SetLong(v uint32, offset int) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	m.writeData(offset, b[:])
}

// SetLongLong writes a 64-bit value.
func (m *Message) SetLongLong(v uint64, offset int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	m.writeData(offset, b[:])
}

// SetFloat writes an IEEE-754 single.
func (m *Message) SetFloat(v float32, offset int) {
	m.SetLong(math.Float32bits(v), offset)
}

// SetDouble writes an IEEE-754 double.
func (m *Message) SetDouble(v float64, offset int) {
	m.SetLongLong(math.Float64bits(v), offset)
}

// SetBuffer copies src into the payload at offset.
func (m *Message) SetBuffer(src []byte, offset int) {
	m.writeData(offset, src)
}
