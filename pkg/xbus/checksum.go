// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

// ByteSum returns the modulo-256 sum of data.
func ByteSum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum returns the checksum byte currently stored in the frame, or 0
// when the header is malformed.
func (m *Message) Checksum() uint8 {
	h := m.header()
	if !h.ok {
		return 0
	}
	return m.buf[h.checksumIndex()]
}

// ComputeChecksum derives the checksum from the bus id through the last
// payload byte without storing it.
func (m *Message) ComputeChecksum() uint8 {
	h := m.header()
	if !h.ok {
		return 0
	}

	var cs uint8
	for _, b := range m.buf[1:h.checksumIndex()] {
		cs -= b
	}
	return cs
}

// RecomputeChecksum stores a freshly computed checksum.
func (m *Message) RecomputeChecksum() {
	h := m.header()
	if !h.ok {
		return
	}
	m.buf[h.checksumIndex()] = m.ComputeChecksum()
}

// IsChecksumOK reports whether the byte sum from the bus id through the
// checksum is zero modulo 256.
func (m *Message) IsChecksumOK() bool {
	h := m.header()
	if !h.ok {
		return false
	}
	return ByteSum(m.buf[1:h.checksumIndex()+1]) == 0
}

// SetAutoChecksum turns incremental checksum maintenance on or off. Turning
// it back on does not repair a stale checksum; call RecomputeChecksum.
func (m *Message) SetAutoChecksum(on bool) {
	m.manualChecksum = !on
}

// AutoChecksum reports whether mutations keep the checksum valid.
func (m *Message) AutoChecksum() bool {
	return !m.manualChecksum
}

// patch overwrites buf[i:i+len(src)] and, when auto checksum is on, adjusts
// the checksum by the difference of the old and new byte sums. Every in
// place write to the frame goes through here.
func (m *Message) patch(i int, src []byte) {
	h := m.header()
	dst := m.buf[i : i+len(src)]

	if !h.ok || !m.AutoChecksum() {
		copy(dst, src)
		return
	}

	ci := h.checksumIndex()
	cs := m.buf[ci]
	cs += ByteSum(dst)
	cs -= ByteSum(src)
	copy(dst, src)
	m.buf[ci] = cs
}

// ensureDataSize grows the payload to at least n bytes, synthesizing an
// empty frame first if the message was never initialized.
func (m *Message) ensureDataSize(n int) {
	if !m.initialized() {
		m.init(0, 0)
	}
	if m.DataSize() < n {
		m.Resize(n)
	}
}

// writeData copies src into the payload at offset, growing the payload when
// the write runs past its end.
func (m *Message) writeData(offset int, src []byte) {
	if len(src) == 0 {
		return
	}
	if offset < 0 {
		panic(m.outOfRange(offset, len(src)))
	}
	m.ensureDataSize(offset + len(src))
	m.patch(m.mustIndex(offset, len(src)), src)
}
