package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/ringcp/internal/stats"
)

var (
	styleDone   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	styleLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5a6278"))
	styleValue  = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  size 2.1 GiB  avg 641 MB/s  time 3m 17s  backend ring  short 0/0
//
// A copy that wrote less than its declared size is marked ✗. With styled
// set the line is colored for a terminal.
func CompletionSummary(snap stats.Snapshot, backend string, styled bool) string {
	icon, iconStyle := "✓", styleDone
	if snap.BytesWritten < snap.BytesTotal {
		icon, iconStyle = "✗", styleFailed
	}

	field := func(label, value string) string {
		if styled {
			return fmt.Sprintf("  %s %s", styleLabel.Render(label), styleValue.Render(value))
		}
		return fmt.Sprintf("  %s %s", label, value)
	}

	head := "done " + icon
	if styled {
		head = iconStyle.Render(head)
	}

	s := head +
		field("size", FormatBytes(snap.BytesWritten)) +
		field("avg", FormatRate(snap.AverageSpeed())) +
		field("time", FormatDuration(snap.Elapsed))
	if backend != "" {
		s += field("backend", backend)
	}
	s += field("short", fmt.Sprintf("%d/%d", snap.ShortReads, snap.ShortWrites))
	if snap.Retries > 0 {
		s += field("retries", FormatCount(snap.Retries))
	}
	return s
}
