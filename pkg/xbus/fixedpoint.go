// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import "math"

// Fixed point payload values keep the least significant wire bit in the
// least significant mantissa bit of the float64 they decode to (and the
// other way around), so a decode/encode cycle is bit exact.

const (
	scale1220 = 1 << 20 // 12.20
	scale1632 = 1 << 32 // 16.32
)

// F1220 reads a signed 12.20 fixed point value.
func (m *Message) F1220(offset int) float64 {
	raw := int32(m.Long(offset))
	d := float64(raw) / scale1220
	return withLowBit(d, uint64(raw)&1)
}

// SetF1220 writes v as a signed 12.20 fixed point value.
func (m *Message) SetF1220(v float64, offset int) {
	raw := uint32(int32(v * scale1220))
	lsb := uint32(math.Float64bits(v) & 1)
	m.SetLong(raw&^1|lsb, offset)
}

// FP1632 reads a signed 16.32 fixed point value: a 32-bit fraction at
// offset followed by a 16-bit signed integer part at offset+4.
func (m *Message) FP1632(offset int) float64 {
	frac := m.Long(offset)
	whole := int16(m.Short(offset + 4))

	raw := int64(whole)<<32 | int64(frac)
	d := float64(raw) / scale1632
	return withLowBit(d, uint64(frac)&1)
}

// SetFP1632 writes v as a signed 16.32 fixed point value. Magnitudes beyond
// the 16-bit integer range saturate.
func (m *Message) SetFP1632(v float64, offset int) {
	whole, frac := encodeFP1632(v)
	m.SetLong(frac, offset)
	m.SetShort(uint16(whole), offset+4)
}

// encodeFP1632 splits v into integer and fraction words by shifting the
// mantissa directly, which avoids rounding through a float multiply.
func encodeFP1632(v float64) (int16, uint32) {
	bits := math.Float64bits(v)
	lsb := uint32(bits & 1)
	exp := int(bits>>52&0x7FF) - 1023

	if exp > 14 {
		if v < 0 {
			return math.MinInt16, lsb
		}
		return math.MaxInt16, 0xFFFFFFFF&^1 | lsb
	}

	mant := int64(bits&(1<<52-1) | 1<<52)
	if v < 0 {
		mant = -mant
	}
	if exp > -32 {
		mant >>= uint(20 - exp)
	} else {
		mant >>= 52
	}

	whole := int16(mant >> 32)
	frac := uint32(mant)
	return whole, frac&^1 | lsb
}

// withLowBit replaces the least significant mantissa bit of d.
func withLowBit(d float64, bit uint64) float64 {
	return math.Float64frombits(math.Float64bits(d)&^1 | bit&1)
}

// widenFloat converts a wire single to float64, carrying its low mantissa
// bit across.
func widenFloat(f float32) float64 {
	return withLowBit(float64(f), uint64(math.Float32bits(f)))
}

// narrowFloat converts v to a wire single, carrying its low mantissa bit
// across.
func narrowFloat(v float64) float32 {
	bits := math.Float32bits(float32(v))&^1 | uint32(math.Float64bits(v)&1)
	return math.Float32frombits(bits)
}
