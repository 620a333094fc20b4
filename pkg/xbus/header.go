// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

// headerShape records which optional header fields a frame carries.
type headerShape uint8

const (
	shapeExtLength headerShape = 1 << iota
	shapeExtID
)

// header is the decoded layout of one frame. It is derived from the buffer
// on every access and never cached, so edits to the length or id bytes are
// always observed.
type header struct {
	shape headerShape

	// dataSize is the declared size of everything between the fixed header
	// (plus extended length) and the checksum, including extended id bytes.
	// It is zero when the header is malformed or the frame does not fit in
	// the buffer.
	dataSize int

	// ok is set when the whole declared frame, checksum included, lies
	// inside the buffer.
	ok bool
}

// parseHeader interprets buf without ever indexing past its end.
func parseHeader(buf []byte) header {
	var h header
	if len(buf) < HeaderSize {
		return h
	}

	size := int(buf[2])
	if buf[2] == ExtLenCode {
		h.shape |= shapeExtLength
		if len(buf) < ExtHeaderSize {
			return h
		}
		size = int(buf[3])<<8 | int(buf[4])
	}
	if buf[h.midIndex()] == ExtendedMessageID {
		h.shape |= shapeExtID
	}
	if h.has(shapeExtLength) && (size < minExtendedDataSize || size > MaxMessageLen) {
		return h
	}

	// Declared frame must fit in what we actually hold
	if h.lengthBytes()+HeaderSize+size+ChecksumSize > len(buf) {
		return h
	}

	h.dataSize = size
	h.ok = true
	return h
}

func (h header) has(s headerShape) bool {
	return h.shape&s != 0
}

// lengthBytes is the number of extended length bytes after the fixed header.
func (h header) lengthBytes() int {
	if h.has(shapeExtLength) {
		return extLengthFieldSize
	}
	return 0
}

// idBytes is the number of extended id bytes. A sentinel id byte without
// room for the extended id contributes nothing.
func (h header) idBytes() int {
	if h.has(shapeExtID) && h.dataSize >= ExtendedIDSize {
		return ExtendedIDSize
	}
	return 0
}

// midIndex is the buffer index of the one byte message id, which follows
// the extended length when there is one.
func (h header) midIndex() int {
	return HeaderSize - 1 + h.lengthBytes()
}

// idIndex is the buffer index of the extended id field.
func (h header) idIndex() int {
	return h.midIndex() + 1
}

// dataStart is the buffer index of payload byte 0.
func (h header) dataStart() int {
	return HeaderSize + h.lengthBytes() + h.idBytes()
}

// payloadSize is the number of payload bytes, excluding extended id bytes.
func (h header) payloadSize() int {
	return h.dataSize - h.idBytes()
}

// overhead is the header plus checksum size for this shape.
func (h header) overhead() int {
	if h.has(shapeExtLength) {
		return ExtHeaderSizeCS
	}
	return HeaderSizeCS
}

// totalSize is the number of bytes this frame puts on the wire.
func (h header) totalSize() int {
	return h.dataSize + h.overhead()
}

// checksumIndex is the buffer index of the checksum byte.
func (h header) checksumIndex() int {
	return h.totalSize() - ChecksumSize
}

// needsExtendedID reports whether mid must use the two byte id field. The
// sentinel itself cannot be sent in one byte without being misread.
func needsExtendedID(mid MessageID) bool {
	return mid > 0xFF || mid == ExtendedMessageID
}
