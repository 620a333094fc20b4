// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Message is one Xbus frame held in an exclusively owned buffer.
//
// The zero value is an uninitialized message: sizes read as zero, resize,
// insert and delete do nothing, and the first setter synthesizes an empty
// frame addressed to the master bus. A Message is not safe for concurrent
// mutation; hand it between goroutines instead of sharing it.
type Message struct {
	buf []byte

	// manualChecksum disables incremental checksum maintenance. The zero
	// value keeps the checksum valid after every mutation.
	manualChecksum bool
}

// NewMessage creates a message with room for payloadSize zeroed payload
// bytes and the given id, addressed to the master bus, with a valid checksum.
// Ids above 0xFF, and the sentinel 0xFE itself, use the two byte extended id
// field, which costs two payload bytes. It panics if payloadSize is negative
// or the data size, extended id included, exceeds MaxMessageLen.
func NewMessage(payloadSize int, mid MessageID) *Message {
	m := &Message{}
	m.init(payloadSize, mid)
	return m
}

// LoadMessage creates a message from a captured frame. The bytes are copied
// verbatim; the header is trusted but re-validated on every size query.
func LoadMessage(raw []byte) *Message {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return &Message{buf: buf}
}

// init synthesizes a fresh zeroed frame in m.buf.
func (m *Message) init(payloadSize int, mid MessageID) {
	if payloadSize < 0 {
		panic(fmt.Sprintf("xbus: negative payload size %d", payloadSize))
	}

	dataSize := payloadSize
	if needsExtendedID(mid) {
		dataSize += ExtendedIDSize
	}
	if dataSize > MaxMessageLen {
		panic(fmt.Errorf("%w: data size %d", ErrMessageTooLarge, dataSize))
	}

	msgSize := dataSize + HeaderSizeCS
	if dataSize > MaxShortDataSize {
		msgSize = dataSize + ExtHeaderSizeCS
	}

	buf := make([]byte, msgSize)
	buf[0] = Preamble
	buf[1] = BusMaster

	p := 3
	if dataSize > MaxShortDataSize {
		buf[2] = ExtLenCode
		binary.BigEndian.PutUint16(buf[p:], uint16(dataSize))
		p += extLengthFieldSize
	} else {
		buf[2] = uint8(dataSize)
	}

	if needsExtendedID(mid) {
		buf[p] = ExtendedMessageID
		binary.BigEndian.PutUint16(buf[p+1:], uint16(mid))
	} else {
		buf[p] = uint8(mid)
	}

	m.buf = buf
	m.RecomputeChecksum()
}

// initialized reports whether the buffer holds at least a fixed header.
func (m *Message) initialized() bool {
	return len(m.buf) >= HeaderSize
}

func (m *Message) header() header {
	return parseHeader(m.buf)
}

// DataSize returns the number of payload bytes, excluding extended id bytes.
// A malformed or truncated header yields zero.
func (m *Message) DataSize() int {
	return m.header().payloadSize()
}

// TotalSize returns the number of bytes the message occupies on the wire,
// header and checksum included. An uninitialized message has size zero.
func (m *Message) TotalSize() int {
	if !m.initialized() {
		return 0
	}
	return m.header().totalSize()
}

// MessageID returns the message id, decoding the extended id field when
// present. MidInvalidMessage is returned when the id cannot be read.
func (m *Message) MessageID() MessageID {
	if !m.initialized() {
		return MidInvalidMessage
	}
	h := m.header()
	i := h.midIndex()
	if i >= len(m.buf) {
		return MidInvalidMessage
	}
	if !h.has(shapeExtID) {
		return MessageID(m.buf[i])
	}
	if h.idBytes() == 0 {
		return MidInvalidMessage
	}
	return MessageID(binary.BigEndian.Uint16(m.buf[h.idIndex():]))
}

// BusID returns the bus identifier byte.
func (m *Message) BusID() uint8 {
	if len(m.buf) < 2 {
		return 0
	}
	return m.buf[1]
}

// Preamble returns the preamble byte as held in the buffer.
func (m *Message) Preamble() uint8 {
	if len(m.buf) == 0 {
		return 0
	}
	return m.buf[0]
}

// Empty reports whether the message is uninitialized or carries id 0 on
// the master bus.
func (m *Message) Empty() bool {
	if !m.initialized() {
		return true
	}
	i := m.header().midIndex()
	return i < len(m.buf) && m.buf[i] == 0 && m.buf[1] == BusMaster
}

// dataIndex returns the buffer index of payload byte offset, checking that
// n bytes starting there lie inside the payload.
func (m *Message) dataIndex(offset, n int) (int, error) {
	h := m.header()
	size := h.payloadSize()
	if offset < 0 || n < 0 || offset >= size || offset+n > size {
		return 0, m.outOfRange(offset, n)
	}
	return h.dataStart() + offset, nil
}

func (m *Message) outOfRange(offset, n int) error {
	return fmt.Errorf("%w: offset %d length %d, data size %d", ErrOffsetOutOfRange, offset, n, m.DataSize())
}

// mustIndex is dataIndex for callers whose arguments are a programming
// contract. It panics on violation.
func (m *Message) mustIndex(offset, n int) int {
	i, err := m.dataIndex(offset, n)
	if err != nil {
		panic(err)
	}
	return i
}

// payload returns the live payload region, or nil for a malformed frame.
func (m *Message) payload() []byte {
	h := m.header()
	if !h.ok {
		return nil
	}
	start := h.dataStart()
	return m.buf[start : start+h.payloadSize()]
}

// Data returns a copy of the payload from offset through its end. It panics
// if offset is not inside the payload.
func (m *Message) Data(offset int) []byte {
	i := m.mustIndex(offset, 0)
	end := i + m.DataSize() - offset
	out := make([]byte, end-i)
	copy(out, m.buf[i:end])
	return out
}

// Payload returns a copy of the payload bytes.
func (m *Message) Payload() []byte {
	p := m.payload()
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// Bytes returns a copy of the frame as it would be transmitted.
func (m *Message) Bytes() []byte {
	n := m.TotalSize()
	if n > len(m.buf) {
		n = len(m.buf)
	}
	out := make([]byte, n)
	copy(out, m.buf)
	return out
}

// WriteTo writes the framed message to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Bytes())
	return int64(n), err
}

// Clone returns an independent copy of the message.
func (m *Message) Clone() *Message {
	c := LoadMessage(m.buf)
	c.manualChecksum = m.manualChecksum
	return c
}

// Swap exchanges the buffers and checksum modes of m and other without
// copying any bytes.
func (m *Message) Swap(other *Message) {
	m.buf, other.buf = other.buf, m.buf
	m.manualChecksum, other.manualChecksum = other.manualChecksum, m.manualChecksum
}

// Equal reports whether both messages hold identical buffers.
func (m *Message) Equal(other *Message) bool {
	return bytes.Equal(m.buf, other.buf)
}

// Compare orders two messages by their raw buffers, like bytes.Compare.
func (m *Message) Compare(other *Message) int {
	return bytes.Compare(m.buf, other.buf)
}

// HexString renders the first maxBytes bytes of the frame as space separated
// hex pairs. A maxBytes of zero renders the whole frame.
func (m *Message) HexString(maxBytes int) string {
	n := m.TotalSize()
	if n > len(m.buf) {
		n = len(m.buf)
	}
	if maxBytes <= 0 || maxBytes > n {
		maxBytes = n
	}

	var sb strings.Builder
	for i := 0; i < maxBytes; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", m.buf[i])
	}
	return sb.String()
}

// SetBusID sets the bus identifier.
func (m *Message) SetBusID(bid uint8) {
	if !m.initialized() {
		m.init(0, 0)
	}
	m.patch(1, []byte{bid})
}

// SetMessageID sets the message id, switching between the one and two byte
// id encodings as needed. Ids above 0xFF and the sentinel 0xFE take the two
// byte form. Payload bytes are preserved; switching encodings changes
// TotalSize by two. It panics with ErrMessageTooLarge if the wider id would
// push the data size past MaxMessageLen, leaving the message unchanged.
func (m *Message) SetMessageID(mid MessageID) {
	if !m.initialized() {
		m.init(0, 0)
	}

	h := m.header()
	extended := h.idBytes() == ExtendedIDSize
	if extended == needsExtendedID(mid) && h.midIndex() < len(m.buf) {
		if extended {
			var id [ExtendedIDSize]byte
			binary.BigEndian.PutUint16(id[:], uint16(mid))
			m.patch(h.idIndex(), id[:])
		} else {
			m.patch(h.midIndex(), []byte{uint8(mid)})
		}
		return
	}

	// The id field grows or shrinks by two bytes right after the length
	// field; the payload moves with it.
	m.rebuild(h.payloadSize(), mid, func(dst, src []byte) {
		copy(dst, src)
	})
}

// Resize changes the payload capacity to newSize bytes, keeping preamble,
// bus id, message id and the leading min(old, new) payload bytes. Growing
// zero-fills. Uninitialized messages are left alone.
func (m *Message) Resize(newSize int) {
	if !m.initialized() {
		return
	}
	if newSize < 0 {
		panic(fmt.Sprintf("xbus: negative resize %d", newSize))
	}
	if m.DataSize() == newSize {
		return
	}
	m.rebuild(newSize, m.MessageID(), func(dst, src []byte) {
		copy(dst, src)
	})
}

// Insert opens count zeroed bytes at offset, moving later bytes up. An
// offset past the end zero-fills the gap as well.
func (m *Message) Insert(count, offset int) {
	if count == 0 || !m.initialized() {
		return
	}
	if count < 0 || offset < 0 {
		panic(fmt.Sprintf("xbus: invalid insert count %d offset %d", count, offset))
	}

	oldSize := m.DataSize()
	newSize := oldSize + count
	if newSize < offset+count {
		newSize = offset + count
	}

	m.rebuild(newSize, m.MessageID(), func(dst, src []byte) {
		if offset >= len(src) {
			copy(dst, src)
			return
		}
		copy(dst, src[:offset])
		copy(dst[offset+count:], src[offset:])
	})
}

// Delete removes count bytes at offset, moving later bytes down. Removing
// through the end truncates the payload to offset.
func (m *Message) Delete(count, offset int) {
	if count < 0 || offset < 0 {
		panic(fmt.Sprintf("xbus: invalid delete count %d offset %d", count, offset))
	}
	oldSize := m.DataSize()
	if count == 0 || offset >= oldSize {
		return
	}
	if offset+count >= oldSize {
		m.Resize(offset)
		return
	}

	m.rebuild(oldSize-count, m.MessageID(), func(dst, src []byte) {
		copy(dst, src[:offset])
		copy(dst[offset:], src[offset+count:])
	})
}

// rebuild replaces the buffer with a fresh frame of payloadSize bytes and id
// mid in one allocation. Preamble and bus id carry over; fill moves payload
// bytes from the old frame (src) into the new one (dst).
func (m *Message) rebuild(payloadSize int, mid MessageID, fill func(dst, src []byte)) {
	old := m.buf
	src := m.payload()

	m.init(payloadSize, mid)
	m.buf[0] = old[0]
	m.buf[1] = old[1]
	fill(m.payload(), src)

	if m.AutoChecksum() {
		m.RecomputeChecksum()
	}
}
