// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	tea "github.com/charmbracelet/bubbletea"
)

// ============================================================
// Formatting Tests
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{1 * time.Second, "1 second"},
		{61 * time.Second, "1 minute and 1 second"},
		{2 * time.Hour, "2 hours"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2 hours, 3 minutes, and 4 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

// ============================================================
// Model Tests
// ============================================================

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestModel_SyncAndData(t *testing.T) {
	m := initialModel("Serial: test", time.Second, false)
	if !strings.Contains(m.View(), "Waiting for synchronization") {
		t.Error("view should wait for sync")
	}

	m = update(t, m, syncMsg{invalidFrames: 3})
	if !m.synchronized || m.invalidFrames != 3 {
		t.Fatalf("sync state = %v, %d", m.synchronized, m.invalidFrames)
	}

	sample := xbus.NewMessage(0, xbus.MidMTData2)
	acc := sample.AppendDataItem(xbus.DataAcceleration, 12)
	sample.SetFPValuesByID(xbus.DataAcceleration, []float64{0.5, -9.75, 1.25}, acc)
	counter := sample.AppendDataItem(xbus.DataPacketCounter, 2)
	sample.SetShort(7, counter)

	m = update(t, m, serialDataMsg{message: sample, at: time.Now()})
	m = update(t, m, serialDataMsg{decodeErr: &xbus.ChecksumError{Expected: 1, Got: 2}})

	if m.stats.TotalMessages != 2 || m.stats.ValidMessages != 1 || m.stats.ChecksumErrors != 1 {
		t.Errorf("stats = %+v", m.stats)
	}
	if m.lastSample == nil || len(m.lastSample.items) != 2 {
		t.Fatalf("lastSample = %+v", m.lastSample)
	}
	if got := m.lastSample.values[0]; len(got) != 3 || got[1] != -9.75 {
		t.Errorf("acceleration values = %v", got)
	}
	if m.lastSample.values[1] != nil {
		t.Errorf("packet counter decoded as floats: %v", m.lastSample.values[1])
	}

	view := m.View()
	for _, want := range []string{"Synchronized", "Acceleration", "-9.7500", "checksum mismatch"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ValidationErrorsLogged(t *testing.T) {
	m := initialModel("Serial: test", time.Second, false)
	m = update(t, m, syncMsg{})

	valid := xbus.NewGotoConfig()
	m = update(t, m, serialDataMsg{message: valid})
	if len(m.eventLog) != 1 {
		t.Errorf("valid message logged without --show-all: %+v", m.eventLog)
	}

	broken := xbus.NewMessage(2, xbus.MidMTData2)
	m = update(t, m, serialDataMsg{message: broken, validationErrors: xbus.ValidateMessage(broken)})
	last := m.eventLog[len(m.eventLog)-1]
	if !last.isError || !strings.HasPrefix(last.message, "MTDATA2:") {
		t.Errorf("last entry = %+v", last)
	}
	if m.stats.ItemOverruns != 1 {
		t.Errorf("ItemOverruns = %d", m.stats.ItemOverruns)
	}
}

func TestModel_LogIsBounded(t *testing.T) {
	m := initialModel("Serial: test", time.Second, true)
	m = update(t, m, syncMsg{})
	for i := 0; i < m.maxLogEntries+20; i++ {
		m = update(t, m, serialDataMsg{message: xbus.NewReqDID()})
	}
	if len(m.eventLog) != m.maxLogEntries {
		t.Errorf("log length = %d, want %d", len(m.eventLog), m.maxLogEntries)
	}
}

func TestModel_KeysAndDisconnect(t *testing.T) {
	m := initialModel("Serial: test", time.Second, false)
	m = update(t, m, serialDataMsg{message: xbus.NewReqDID()})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.stats.TotalMessages != 0 {
		t.Errorf("stats not reset: %d", m.stats.TotalMessages)
	}

	m = update(t, m, connectionLostMsg{err: errors.New("port vanished")})
	if !m.disconnected || !strings.Contains(m.View(), "Disconnected") {
		t.Error("disconnect not shown")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(model).quitting || cmd == nil {
		t.Error("q should quit")
	}
}

// ============================================================
// Stream Tests
// ============================================================

func TestSyncTracker(t *testing.T) {
	var s syncTracker
	bad := streamEvent{err: &xbus.ChecksumError{}}
	good := streamEvent{msg: xbus.NewReqDID()}

	if count, synced := s.observe(bad); count || synced {
		t.Error("error before sync counted")
	}
	if count, synced := s.observe(good); !count || !synced {
		t.Error("first message should sync")
	}
	if count, synced := s.observe(bad); !count || synced {
		t.Error("error after sync not counted")
	}
	if s.skipped != 1 {
		t.Errorf("skipped = %d", s.skipped)
	}
}

func TestReadStream(t *testing.T) {
	corrupt := xbus.NewGotoConfig().Bytes()
	corrupt[len(corrupt)-1] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x11)
	stream = append(stream, xbus.NewReqDID().Bytes()...)
	stream = append(stream, corrupt...)
	stream = append(stream, xbus.NewMessage(300, xbus.MidMTData2).Bytes()...)

	events := make(chan streamEvent, 8)
	done := make(chan struct{})
	defer close(done)

	if err := <-readStream(bytes.NewReader(stream), events, done); err != nil {
		t.Fatalf("readStream: %v", err)
	}
	close(events)

	var got []streamEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[0].msg == nil || got[0].msg.MessageID() != xbus.MidReqDID {
		t.Errorf("event 0 = %+v", got[0])
	}
	if !xbus.IsChecksumError(got[1].err) {
		t.Errorf("event 1 error = %v", got[1].err)
	}
	if got[2].msg == nil || got[2].msg.DataSize() != 300 {
		t.Errorf("event 2 = %+v", got[2])
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadStream_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"eof", io.EOF, nil},
		{"closed", ErrConnectionClosed, nil},
		{"failure", boom, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			defer close(done)
			err := <-readStream(failingReader{err: tt.err}, make(chan streamEvent), done)
			if !errors.Is(err, tt.want) && err != tt.want {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandleTextEvent(t *testing.T) {
	stats := xbus.NewStatistics()
	var out bytes.Buffer

	showAll = false
	handleTextEvent(&out, stats, streamEvent{msg: xbus.NewReqDID(), at: time.Now()})
	if out.Len() != 0 {
		t.Errorf("valid message printed in errors-only mode:\n%s", out.String())
	}

	handleTextEvent(&out, stats, streamEvent{err: &xbus.ChecksumError{Raw: []byte{0xFA, 0x01}}, at: time.Now()})
	if !strings.Contains(out.String(), "DECODE ERROR") || !strings.Contains(out.String(), "FA 01") {
		t.Errorf("decode error output:\n%s", out.String())
	}

	out.Reset()
	handleTextEvent(&out, stats, streamEvent{msg: xbus.NewMessage(1, xbus.MidError), at: time.Now()})
	if !strings.Contains(out.String(), "ERROR (0x42)") {
		t.Errorf("device error not shown:\n%s", out.String())
	}

	if stats.TotalMessages != 3 || stats.ChecksumErrors != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
