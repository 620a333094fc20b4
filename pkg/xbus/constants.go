// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xbus implements the Xbus message codec used by inertial
// measurement devices on serial and USB links.
//
// A Message owns one contiguous wire frame:
//
//	[0]  preamble (0xFA)
//	[1]  bus id
//	[2]  length, or ExtLenCode followed by a 16-bit big-endian length
//	[..] message id, or ExtendedMessageID followed by a 16-bit big-endian id
//	[..] payload
//	[n]  checksum, the byte sum of bytes 1..n is zero modulo 256
//
// The optional extended length bytes sit right after the length byte, so
// the id byte is at index 3 for short frames and 5 for extended ones. The
// optional extended id bytes follow the id byte. Both shift every later
// offset, which is why all payload access goes through Message rather than
// raw indexing.
package xbus

// Framing bytes
const (
	Preamble          = 0xFA
	ExtLenCode        = 0xFF
	ExtendedMessageID = 0xFE
)

// Bus identifiers
const (
	BusMaster    = 0xFF
	BusBroadcast = 0xFF
	BusMT        = 0x01
)

// Frame size limits
const (
	HeaderSize          = 4 // preamble + bus + length + id
	ExtHeaderSize       = 6 // HeaderSize + 2 extended length bytes
	ChecksumSize        = 1
	HeaderSizeCS        = HeaderSize + ChecksumSize
	ExtHeaderSizeCS     = ExtHeaderSize + ChecksumSize
	ExtendedIDSize      = 2
	MaxShortDataSize    = 254
	MaxMessageLen       = 8192
	MaxDataLen          = MaxMessageLen - ExtHeaderSizeCS
	extLengthFieldSize  = 2
	minExtendedDataSize = MaxShortDataSize + 1
)

// MessageID identifies the message type. Values above 0xFF use the
// extended id encoding on the wire.
type MessageID uint16

// MidInvalidMessage is reported when the id field cannot be decoded.
const MidInvalidMessage MessageID = 0xFFFF

// Message ids
const (
	MidReqDID                   MessageID = 0x00
	MidDeviceID                 MessageID = 0x01
	MidGotoMeasurement          MessageID = 0x10
	MidGotoMeasurementAck       MessageID = 0x11
	MidReqFirmwareRevision      MessageID = 0x12
	MidFirmwareRevision         MessageID = 0x13
	MidReqBaudrate              MessageID = 0x18
	MidReqBaudrateAck           MessageID = 0x19
	MidReqProductCode           MessageID = 0x1C
	MidProductCode              MessageID = 0x1D
	MidGotoConfig               MessageID = 0x30
	MidGotoConfigAck            MessageID = 0x31
	MidMTData2                  MessageID = 0x36
	MidWakeUp                   MessageID = 0x3E
	MidWakeUpAck                MessageID = 0x3F
	MidReset                    MessageID = 0x40
	MidResetAck                 MessageID = 0x41
	MidError                    MessageID = 0x42
	MidWarning                  MessageID = 0x43
	MidSetOutputConfiguration   MessageID = 0xC0
	MidOutputConfigurationReply MessageID = 0xC1
)

// DataIdentifier describes one MTData2 data item: its quantity and, in the
// low two bits, the numeric sub-format of its values.
type DataIdentifier uint16

// Sub-format selection
const (
	SubFormatMask   DataIdentifier = 0x0003
	SubFormatFloat  DataIdentifier = 0x0000
	SubFormatFp1220 DataIdentifier = 0x0001
	SubFormatFp1632 DataIdentifier = 0x0002
	SubFormatDouble DataIdentifier = 0x0003

	// FullTypeMask strips the format bits, leaving the quantity.
	FullTypeMask DataIdentifier = 0xFFF0
)

// Data identifiers used by this package
const (
	DataTemperature      DataIdentifier = 0x0810
	DataPacketCounter    DataIdentifier = 0x1020
	DataSampleTimeFine   DataIdentifier = 0x1060
	DataQuaternion       DataIdentifier = 0x2010
	DataEulerAngles      DataIdentifier = 0x2030
	DataDeltaV           DataIdentifier = 0x4010
	DataAcceleration     DataIdentifier = 0x4020
	DataFreeAcceleration DataIdentifier = 0x4030
	DataRateOfTurn       DataIdentifier = 0x8020
	DataDeltaQ           DataIdentifier = 0x8030
	DataMagneticField    DataIdentifier = 0xC020
	DataStatusWord       DataIdentifier = 0xE020
)
