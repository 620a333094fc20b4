// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

// SubFormat returns the numeric format bits of id.
func (id DataIdentifier) SubFormat() DataIdentifier {
	return id & SubFormatMask
}

// Type returns id without its format bits.
func (id DataIdentifier) Type() DataIdentifier {
	return id & FullTypeMask
}

// FPValueSize returns the wire size of one value in the sub-format of id.
func FPValueSize(id DataIdentifier) int {
	switch id.SubFormat() {
	case SubFormatFloat:
		return 4
	case SubFormatDouble:
		return 8
	case SubFormatFp1632:
		return 6
	case SubFormatFp1220:
		return 4
	default:
		return 0
	}
}

// FPValuesByID reads n consecutive values encoded in the sub-format of id,
// starting at offset.
func (m *Message) FPValuesByID(id DataIdentifier, offset, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		switch id.SubFormat() {
		case SubFormatFloat:
			out[i] = widenFloat(m.Float(offset))
		case SubFormatDouble:
			out[i] = m.Double(offset)
		case SubFormatFp1632:
			out[i] = m.FP1632(offset)
		case SubFormatFp1220:
			out[i] = m.F1220(offset)
		}
		offset += FPValueSize(id)
	}
	return out
}

// SetFPValuesByID writes values consecutively in the sub-format of id,
// starting at offset and growing the payload as needed.
func (m *Message) SetFPValuesByID(id DataIdentifier, values []float64, offset int) {
	for _, v := range values {
		switch id.SubFormat() {
		case SubFormatFloat:
			m.SetFloat(narrowFloat(v), offset)
		case SubFormatDouble:
			m.SetDouble(v, offset)
		case SubFormatFp1632:
			m.SetFP1632(v, offset)
		case SubFormatFp1220:
			m.SetF1220(v, offset)
		}
		offset += FPValueSize(id)
	}
}
