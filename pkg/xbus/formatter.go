// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a message into a human-readable string
func FormatMessage(m *Message, timestamp time.Time) string {
	mid := m.MessageID()
	result := fmt.Sprintf("[%s] %s (0x%02X) bus=0x%02X len=%d\n",
		timestamp.Format("15:04:05.000"), MessageIDName(mid), uint16(mid), m.BusID(), m.DataSize())

	switch mid {
	case MidMTData2:
		result += FormatDataItems(m)
	case MidSetOutputConfiguration, MidOutputConfigurationReply:
		for _, c := range m.OutputConfigurations() {
			result += fmt.Sprintf("  %s (0x%04X) @ %d Hz\n", DataIdentifierName(c.ID), uint16(c.ID), c.Frequency)
		}
	case MidDeviceID:
		if m.DataSize() >= 4 {
			result += fmt.Sprintf("  Device ID: %08X\n", m.Long(0))
		}
	case MidError:
		if m.DataSize() >= 1 {
			result += fmt.Sprintf("  Error code: 0x%02X\n", m.Byte(0))
		}
	default:
		if m.DataSize() > 0 {
			result += FormatHexDump(m.Payload())
		}
	}

	return result
}

// FormatDataItems lists the MTData2 items of m, one per line. Values are
// decoded only for the floating and fixed point sub-formats.
func FormatDataItems(m *Message) string {
	items, err := m.DataItems()

	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "  %s (0x%04X) size=%d", DataIdentifierName(it.ID), uint16(it.ID), it.Size)
		if n := it.ValueCount(); n > 0 {
			values := m.FPValuesByID(it.ID, it.Offset, n)
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprintf("%.6f", v)
			}
			fmt.Fprintf(&sb, " [%s]", strings.Join(parts, ", "))
		}
		sb.WriteByte('\n')
	}
	if err != nil {
		fmt.Fprintf(&sb, "  ! %v\n", err)
	}
	return sb.String()
}

// ValueCount is the number of whole values the item holds, or zero for
// items that do not carry floating or fixed point vectors.
func (it DataItem) ValueCount() int {
	switch it.ID.Type() {
	case DataQuaternion, DataEulerAngles, DataDeltaV, DataAcceleration,
		DataFreeAcceleration, DataRateOfTurn, DataDeltaQ, DataMagneticField, DataTemperature:
	default:
		return 0
	}
	size := FPValueSize(it.ID)
	if size == 0 {
		return 0
	}
	return it.Size / size
}

// FormatHexDump renders data sixteen bytes per line
func FormatHexDump(data []byte) string {
	var sb strings.Builder
	for i := 0; i < len(data); i += 16 {
		end := i + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&sb, "  %04X:", i)
		for _, b := range data[i:end] {
			fmt.Fprintf(&sb, " %02X", b)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// MessageIDName returns the human-readable name for a message id
func MessageIDName(mid MessageID) string {
	switch mid {
	case MidReqDID:
		return "REQ_DID"
	case MidDeviceID:
		return "DEVICE_ID"
	case MidGotoMeasurement:
		return "GOTO_MEASUREMENT"
	case MidGotoMeasurementAck:
		return "GOTO_MEASUREMENT_ACK"
	case MidReqFirmwareRevision:
		return "REQ_FIRMWARE_REVISION"
	case MidFirmwareRevision:
		return "FIRMWARE_REVISION"
	case MidReqBaudrate:
		return "REQ_BAUDRATE"
	case MidReqBaudrateAck:
		return "REQ_BAUDRATE_ACK"
	case MidReqProductCode:
		return "REQ_PRODUCT_CODE"
	case MidProductCode:
		return "PRODUCT_CODE"
	case MidGotoConfig:
		return "GOTO_CONFIG"
	case MidGotoConfigAck:
		return "GOTO_CONFIG_ACK"
	case MidMTData2:
		return "MTDATA2"
	case MidWakeUp:
		return "WAKEUP"
	case MidWakeUpAck:
		return "WAKEUP_ACK"
	case MidReset:
		return "RESET"
	case MidResetAck:
		return "RESET_ACK"
	case MidError:
		return "ERROR"
	case MidWarning:
		return "WARNING"
	case MidSetOutputConfiguration:
		return "SET_OUTPUT_CONFIGURATION"
	case MidOutputConfigurationReply:
		return "OUTPUT_CONFIGURATION"
	case MidInvalidMessage:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// DataIdentifierName returns the quantity name of id, ignoring its format bits
func DataIdentifierName(id DataIdentifier) string {
	switch id.Type() {
	case DataTemperature:
		return "Temperature"
	case DataPacketCounter:
		return "PacketCounter"
	case DataSampleTimeFine:
		return "SampleTimeFine"
	case DataQuaternion:
		return "Quaternion"
	case DataEulerAngles:
		return "EulerAngles"
	case DataDeltaV:
		return "DeltaV"
	case DataAcceleration:
		return "Acceleration"
	case DataFreeAcceleration:
		return "FreeAcceleration"
	case DataRateOfTurn:
		return "RateOfTurn"
	case DataDeltaQ:
		return "DeltaQ"
	case DataMagneticField:
		return "MagneticField"
	case DataStatusWord:
		return "StatusWord"
	default:
		return "Unknown"
	}
}
