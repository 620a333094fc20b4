// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import "fmt"

// mtItemHeaderSize is the data identifier plus the one byte item size.
const mtItemHeaderSize = 3

// DataItem locates one MTData2 item inside a message payload.
type DataItem struct {
	ID     DataIdentifier
	Offset int // Payload offset of the first data byte
	Size   int
}

// DataItems walks the MTData2 payload of m. Items found before a truncated
// or oversized item are returned along with an ErrItemOverrun error.
func (m *Message) DataItems() ([]DataItem, error) {
	size := m.DataSize()
	var items []DataItem

	for offset := 0; offset < size; {
		if offset+mtItemHeaderSize > size {
			return items, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrItemOverrun, size-offset, offset)
		}

		item := DataItem{
			ID:     DataIdentifier(m.Short(offset)),
			Offset: offset + mtItemHeaderSize,
			Size:   int(m.Byte(offset + 2)),
		}
		if item.Offset+item.Size > size {
			return items, fmt.Errorf("%w: item 0x%04X size %d at offset %d, data size %d",
				ErrItemOverrun, uint16(item.ID), item.Size, offset, size)
		}

		items = append(items, item)
		offset = item.Offset + item.Size
	}

	return items, nil
}

// AppendDataItem adds an item header for id with size data bytes at the end
// of the payload and returns the payload offset of its data.
func (m *Message) AppendDataItem(id DataIdentifier, size uint8) int {
	offset := m.DataSize()
	m.SetShort(uint16(id), offset)
	m.SetByte(size, offset+2)
	if size > 0 {
		m.Resize(offset + mtItemHeaderSize + int(size))
	}
	return offset + mtItemHeaderSize
}
