// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/telemetron/pkg/ccsds"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// Latest state of one subsystem
type subsystemState struct {
	packet    *ccsds.Packet
	anomalies int
}

// TUI model
type model struct {
	source        string
	statsInterval int
	showAll       bool
	stats         *ccsds.Statistics
	latest        map[ccsds.APID]*subsystemState
	table         table.Model
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	sourceErr     error
	sourceDone    bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type packetMsg struct {
	packet           *ccsds.Packet
	decodeErr        error
	validationErrors []ccsds.ValidationError
}
type sourceDoneMsg struct {
	err error
}

// formatUptime formats uptime in seconds to human-friendly string
func formatUptime(total uint64) string {
	if total == 0 {
		return "0 seconds"
	}

	seconds := total
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	plural := func(n uint64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
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

func newSubsystemTable() table.Model {
	columns := []table.Column{
		{Title: "Subsystem", Width: 11},
		{Title: "APID", Width: 6},
		{Title: "Packets", Width: 8},
		{Title: "Seq", Width: 6},
		{Title: "Last", Width: 13},
		{Title: "Status", Width: 8},
		{Title: "Reading", Width: 34},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(ccsds.SubsystemCount()+1),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t
}

func initialModel(source string, statsInterval int, showAll bool) model {
	m := model{
		source:        source,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         ccsds.NewStatistics(),
		latest:        make(map[ccsds.APID]*subsystemState),
		table:         newSubsystemTable(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshTable()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
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

	case tickMsg:
		m.refreshTable()
		return m, tickCmd()

	case sourceDoneMsg:
		m.sourceDone = true
		m.sourceErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("SOURCE ERROR: %v", msg.err), true)
		} else {
			m.addLogEntry("Source finished", false)
		}

	case packetMsg:
		if msg.decodeErr != nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR [%s]: %v", ccsds.ErrorKind(msg.decodeErr), msg.decodeErr), true)
		} else if msg.packet != nil {
			if !m.synchronized {
				m.synchronized = true
				m.addLogEntry("Receiving packets", false)
			}
			m.stats.Update(msg.packet, nil, msg.validationErrors)

			state, ok := m.latest[msg.packet.APID()]
			if !ok {
				state = &subsystemState{}
				m.latest[msg.packet.APID()] = state
			}
			state.packet = msg.packet

			name := strings.ToUpper(msg.packet.Subsystem())
			if len(msg.validationErrors) > 0 {
				state.anomalies++
				for _, err := range msg.validationErrors {
					m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
				}
			} else if m.showAll {
				m.addLogEntry(fmt.Sprintf("%s seq=%d (valid)", name, msg.packet.SequenceCount()), false)
			}
			m.refreshTable()
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// reading summarizes the first fields of a packet for the table
func reading(p *ccsds.Packet) string {
	schema := p.Schema()
	fields := p.Fields()
	if p.APID() == ccsds.APIDCDH {
		if up, ok := fields.Uint("uptime"); ok {
			return "up " + formatUptime(up)
		}
	}
	var parts []string
	for _, f := range schema.Fields[:min(2, len(schema.Fields))] {
		parts = append(parts, ccsds.FormatField(f, fields[f.Name]))
	}
	return strings.Join(parts, ", ")
}

func (m *model) refreshTable() {
	snap := m.stats.Snapshot()
	rows := make([]table.Row, 0, ccsds.SubsystemCount())
	for _, e := range ccsds.Entries() {
		row := table.Row{
			strings.ToUpper(e.Name),
			fmt.Sprintf("0x%02X", uint16(e.APID)),
			fmt.Sprintf("%d", snap.PerSubsystem[e.Name]),
			"-", "-", "-", "",
		}
		if state, ok := m.latest[e.APID]; ok {
			p := state.packet
			row[3] = fmt.Sprintf("%d", p.SequenceCount())
			row[4] = p.ReceivedAt().Format("15:04:05.000")
			row[5] = "OK"
			if state.anomalies > 0 {
				row[5] = fmt.Sprintf("%d ANOM", state.anomalies)
			}
			row[6] = reading(p)
		}
		rows = append(rows, row)
	}
	m.table.SetRows(rows)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("TELEMETRON - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Source: %s | Mode: %s | 'r' reset, 'q' quit",
		m.source, func() string {
			if m.showAll {
				return "All packets"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Link status
	switch {
	case m.sourceErr != nil:
		s.WriteString(errorStyle.Render("✗ Source failed"))
	case m.sourceDone:
		s.WriteString(headerStyle.Render("■ Source finished"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for packets..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	errors := snap.Errors()
	var validPercent, errorPercent float64
	if snap.TotalPackets > 0 {
		validPercent = float64(snap.ValidPackets) * 100.0 / float64(snap.TotalPackets)
		errorPercent = float64(errors) * 100.0 / float64(snap.TotalPackets)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalPackets)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidPackets, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errors, errorPercent)),
	))

	if errors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("CRC:"), errorStyle.Render(fmt.Sprintf("%d", snap.ChecksumErrors)),
			statsLabelStyle.Render("Incomplete:"), errorStyle.Render(fmt.Sprintf("%d", snap.IncompletePackets)),
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", snap.MalformedPayloads+snap.MalformedHeaders)),
			statsLabelStyle.Render("Unknown APID:"), errorStyle.Render(fmt.Sprintf("%d", snap.UnknownAPIDs)),
		))
	}

	if snap.AnomalousPackets > 0 || snap.SequenceGaps > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d)   %s %s (%s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", snap.AnomalousPackets)),
			headerStyle.Render("fault flags"), snap.FaultFlags,
			statsLabelStyle.Render("Seq gaps:"), warningStyle.Render(fmt.Sprintf("%d", snap.SequenceGaps)),
			headerStyle.Render("missed"), snap.MissedPackets,
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Packet Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f pkts/s", snap.PacketRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if snap.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Subsystems
	s.WriteString(statsLabelStyle.Render("Subsystems:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	// Error log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 26 // Reserve space for header, stats and table
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
