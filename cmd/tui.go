// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/xbuscope/pkg/xbus"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// Latest MTData2 snapshot
type sampleData struct {
	timestamp time.Time
	busID     uint8
	items     []xbus.DataItem
	values    [][]float64 // decoded values per item, nil when not numeric
}

// TUI model
type model struct {
	connInfo      string
	statsInterval time.Duration
	showAll       bool
	stats         *xbus.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	invalidFrames int
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	disconnected  bool
	lastSample    *sampleData
}

// Messages
type tickMsg time.Time
type serialDataMsg struct {
	message          *xbus.Message
	decodeErr        error
	validationErrors []xbus.ValidationError
	at               time.Time
}
type syncMsg struct {
	invalidFrames int
}
type connectionLostMsg struct {
	err error
}

// formatDuration renders d as "1 hour, 2 minutes, and 3 seconds"
func formatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total <= 0 {
		return "0 seconds"
	}

	units := []struct {
		name string
		size int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	parts := []string{}
	for _, u := range units {
		n := total / u.size
		total %= u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(connInfo string, statsInterval time.Duration, showAll bool) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         xbus.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.statsInterval),
		m.spinner.Tick,
	)
}

func tickCmd(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		interval = time.Second
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		if m.synchronized {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd(m.statsInterval)

	case syncMsg:
		m.synchronized = true
		m.invalidFrames = msg.invalidFrames
		if msg.invalidFrames > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after dropping %d frames", msg.invalidFrames), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionLostMsg:
		m.disconnected = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case serialDataMsg:
		m.handleData(msg)
	}

	return m, nil
}

func (m *model) handleData(msg serialDataMsg) {
	if msg.decodeErr != nil {
		m.stats.Update(nil, msg.decodeErr, nil)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if msg.message == nil {
		return
	}

	m.stats.Update(msg.message, nil, msg.validationErrors)
	m.captureSample(msg.message, msg.at)

	name := xbus.MessageIDName(msg.message.MessageID())
	switch {
	case len(msg.validationErrors) > 0:
		for _, err := range msg.validationErrors {
			m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
		}
	case msg.message.MessageID() == xbus.MidError:
		m.addLogEntry(fmt.Sprintf("%s from bus 0x%02X", name, msg.message.BusID()), true)
	case m.showAll:
		m.addLogEntry(fmt.Sprintf("%s (valid, %d bytes)", name, msg.message.DataSize()), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// captureSample keeps the item list of the latest well formed MTData2
func (m *model) captureSample(msg *xbus.Message, at time.Time) {
	if msg.MessageID() != xbus.MidMTData2 {
		return
	}
	items, err := msg.DataItems()
	if err != nil {
		return
	}

	values := make([][]float64, len(items))
	for i, it := range items {
		if n := it.ValueCount(); n > 0 {
			values[i] = msg.FPValuesByID(it.ID, it.Offset, n)
		}
	}

	m.lastSample = &sampleData{
		timestamp: at,
		busID:     msg.BusID(),
		items:     items,
		values:    values,
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("XBUSCOPE - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All messages"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Up %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatDuration(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	switch {
	case m.disconnected:
		s.WriteString(errorStyle.Render("✗ Disconnected"))
	case !m.synchronized:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.invalidFrames > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (dropped %d frames)", m.invalidFrames)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	st := m.stats
	var validPercent, errorPercent float64
	if st.TotalMessages > 0 {
		validPercent = float64(st.ValidMessages) * 100.0 / float64(st.TotalMessages)
		errorPercent = float64(st.ErrorCount()) * 100.0 / float64(st.TotalMessages)
	}

	statsContent := strings.Builder{}
	fmt.Fprintf(&statsContent, "%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalMessages)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidMessages, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ErrorCount(), errorPercent)),
	)

	if st.ChecksumErrors > 0 || st.DecodeErrors > 0 {
		fmt.Fprintf(&statsContent, "%s %s   %s %s\n",
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.DecodeErrors)),
		)
	}

	if st.MalformedMessages > 0 {
		fmt.Fprintf(&statsContent, "%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", st.MalformedMessages)),
			headerStyle.Render("length"), st.LengthMismatches,
			headerStyle.Render("item overrun"), st.ItemOverruns,
			headerStyle.Render("invalid id"), st.InvalidIDs,
		)
	}

	fmt.Fprintf(&statsContent, "%s %s   %s %s\n",
		statsLabelStyle.Render("Extended:"), statsValueStyle.Render(fmt.Sprintf("%d", st.ExtendedMessages)),
		statsLabelStyle.Render("Bytes:"), statsValueStyle.Render(fmt.Sprintf("%d", st.BytesReceived)),
	)

	errRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	fmt.Fprintf(&statsContent, "%s %s   %s %s",
		statsLabelStyle.Render("Message Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f msg/s", st.MessageRate)),
		statsLabelStyle.Render("Error Rate:"), errRate,
	)

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest MTData2 (only shown once one arrives)
	if m.lastSample != nil {
		s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Latest MTData2 (bus 0x%02X, %s):",
			m.lastSample.busID, m.lastSample.timestamp.Format("15:04:05.000"))))
		s.WriteString("\n")

		sampleContent := strings.Builder{}
		for i, it := range m.lastSample.items {
			label := statsLabelStyle.Render(fmt.Sprintf("%-22s", xbus.DataIdentifierName(it.ID)))
			if vals := m.lastSample.values[i]; vals != nil {
				parts := make([]string, len(vals))
				for j, v := range vals {
					parts[j] = fmt.Sprintf("%.4f", v)
				}
				fmt.Fprintf(&sampleContent, "%s %s\n", label, statsValueStyle.Render(strings.Join(parts, "  ")))
			} else {
				fmt.Fprintf(&sampleContent, "%s %s\n", label, headerStyle.Render(fmt.Sprintf("%d bytes", it.Size)))
			}
		}
		if len(m.lastSample.items) == 0 {
			sampleContent.WriteString(headerStyle.Render("(no items)"))
		}

		s.WriteString(boxStyle.Render(strings.TrimRight(sampleContent.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 16
	if m.lastSample != nil {
		logHeight -= len(m.lastSample.items) + 3
	}
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				fmt.Fprintf(&logContent, "%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				)
			} else {
				fmt.Fprintf(&logContent, "%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				)
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
