package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/ringcp/internal/stats"
)

// FormatRate formats a bytes-per-second rate as a human-readable string.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	units := []string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s"}
	val := bytesPerSec
	for _, u := range units {
		if val < 1024 {
			if val < 10 {
				return fmt.Sprintf("%.2f %s", val, u)
			}
			if val < 100 {
				return fmt.Sprintf("%.1f %s", val, u)
			}
			return fmt.Sprintf("%.0f %s", val, u)
		}
		val /= 1024
	}
	return fmt.Sprintf("%.1f PB/s", val)
}

// FormatETA formats a remaining-time estimate; "--" when there is none.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ProgressBar renders a progress bar of the given width using ▪/□ characters.
// pct is clamped to [0, 1].
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := min(max(int(pct*float64(width)), 0), width)
	return strings.Repeat("▪", filled) + strings.Repeat("□", width-filled)
}

// SlotIndicator renders pool occupancy as at most width cells. When the pool
// is larger than width each cell stands for several slots, and any busy slot
// lights at least one cell.
func SlotIndicator(busy, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	busy = min(max(busy, 0), total)
	cells := min(total, width)
	filled := (busy*cells + total - 1) / total

	var b strings.Builder
	for i := range cells {
		if i < filled {
			b.WriteRune('▪')
		} else {
			b.WriteRune('□')
		}
	}
	return b.String()
}

// Sparkline renders a slice of float64 values as Unicode block characters.
// The output is exactly width runes wide. Values are normalized to the max
// value in the input slice.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}

	blocks := []rune("▁▂▃▄▅▆▇█")

	// Take the last `width` samples, or pad left with zeros.
	samples := make([]float64, width)
	if len(data) >= width {
		copy(samples, data[len(data)-width:])
	} else {
		copy(samples[width-len(data):], data)
	}

	maxVal := 0.0
	for _, v := range samples {
		maxVal = max(maxVal, v)
	}

	out := make([]rune, width)
	for i, v := range samples {
		if maxVal <= 0 || v <= 0 {
			out[i] = blocks[0]
			continue
		}
		idx := min(int(v/maxVal*float64(len(blocks)-1)), len(blocks)-1)
		out[i] = blocks[idx]
	}
	return string(out)
}

// FormatBytes wraps stats.FormatBytes for UI use.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatDuration formats elapsed time concisely.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
