// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbus

// Command builder functions create messages ready to be written to a device.
// All of them address the master bus and carry a valid checksum.

// NewGotoConfig creates a GotoConfig message (0x30).
// The device stops measuring and accepts configuration commands.
func NewGotoConfig() *Message {
	return NewMessage(0, MidGotoConfig)
}

// NewGotoMeasurement creates a GotoMeasurement message (0x10).
func NewGotoMeasurement() *Message {
	return NewMessage(0, MidGotoMeasurement)
}

// NewReqDID creates a device id request (0x00).
func NewReqDID() *Message {
	return NewMessage(0, MidReqDID)
}

// NewWakeUpAck acknowledges a WakeUp (0x3F), which keeps the device in
// configuration mode after power up.
func NewWakeUpAck() *Message {
	return NewMessage(0, MidWakeUpAck)
}

// NewReset creates a Reset message (0x40).
func NewReset() *Message {
	return NewMessage(0, MidReset)
}

// OutputConfiguration requests one data identifier at a given rate.
type OutputConfiguration struct {
	ID        DataIdentifier
	Frequency uint16 // Hz; 0xFFFF means every sample
}

// DefaultOutputConfiguration is acceleration and rate of turn at 100 Hz.
var DefaultOutputConfiguration = []OutputConfiguration{
	{ID: DataAcceleration, Frequency: 100},
	{ID: DataRateOfTurn, Frequency: 100},
}

// NewSetOutputConfiguration creates a SetOutputConfiguration message (0xC0).
// Each entry occupies four payload bytes: identifier then frequency, both
// big-endian.
func NewSetOutputConfiguration(config []OutputConfiguration) *Message {
	m := NewMessage(len(config)*4, MidSetOutputConfiguration)
	for i, c := range config {
		m.SetShort(uint16(c.ID), i*4)
		m.SetShort(c.Frequency, i*4+2)
	}
	return m
}

// OutputConfigurations decodes the payload of a SetOutputConfiguration or
// OutputConfigurationReply message. A trailing partial entry is ignored.
func (m *Message) OutputConfigurations() []OutputConfiguration {
	n := m.DataSize() / 4
	out := make([]OutputConfiguration, n)
	for i := range out {
		out[i] = OutputConfiguration{
			ID:        DataIdentifier(m.Short(i * 4)),
			Frequency: m.Short(i*4 + 2),
		}
	}
	return out
}
