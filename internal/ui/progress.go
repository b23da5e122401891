package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ringcp/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a TTY display: a header naming the copy and a 2-line
// HUD that redraws in place. Verbose mode scrolls short transfers above it.
type hudPresenter struct {
	w       io.Writer
	stats   *stats.Collector
	verbose bool
	label   string // "src → dst"
	width   int
	color   bool
	slots   int // pool size, for the slot indicator

	// Internal state.
	headerDone   bool
	hudDrawn     bool
	hudLineCount int
	batchSlots   int // slots in the most recent batch
	lastHUDDraw  time.Time
}

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	slotIndicatorMax = 16
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

func (p *hudPresenter) Run(events <-chan Event) error {
	// Fire first tick quickly to seed the ring buffer with initial speed data,
	// then switch to 1s interval.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(1 * time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case CopyStarted:
		if !p.headerDone {
			p.headerDone = true
			p.printLine(fmt.Sprintf("%s  %s%s",
				p.bold(truncPath(p.label, max(p.width-16, 20))),
				p.dim(FormatBytes(ev.Size)), p.reset()))
		}

	case BatchRead:
		p.batchSlots = ev.Slots

	case BatchWritten:
		p.batchSlots = 0

	case ShortRead:
		if p.verbose {
			p.printLine(fmt.Sprintf("%s↯ short read   @%d  slot %d  %s%s",
				p.dim(""), ev.Offset, ev.Slot, FormatBytes(ev.Size), p.reset()))
		}

	case ShortWrite:
		if p.verbose {
			p.printLine(fmt.Sprintf("%s↯ short write  @%d  slot %d  %s%s",
				p.dim(""), ev.Offset, ev.Slot, FormatBytes(ev.Size), p.reset()))
		}

	case CopyFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.printLine(fmt.Sprintf("✗  failed at %s: %s", FormatBytes(ev.Total), errMsg))
	}
}

// printLine writes a line above the HUD.
func (p *hudPresenter) printLine(s string) {
	p.clearHUD()
	fmt.Fprintln(p.w, s)
	p.drawHUD()
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()

	p.clearHUD()

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesWritten) / float64(snap.BytesTotal)
	}

	speed := p.stats.RollingSpeed(10)

	// Line 1: throughput sparkline + speed + byte totals.
	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "       %s   %s   %s / %s\n",
		spark, FormatRate(speed),
		FormatBytes(snap.BytesWritten), FormatBytes(snap.BytesTotal))

	// Line 2: progress bar + slot activity + eta.
	line := fmt.Sprintf(" %3.0f%%  %s   eta %s",
		pct*100, ProgressBar(pct, progressBarWidth), FormatETA(p.stats.ETA()))
	if p.slots > 0 {
		line += "   slots " + SlotIndicator(p.batchSlots, p.slots, slotIndicatorMax)
	}
	fmt.Fprintln(p.w, line)

	p.hudDrawn = true
	p.hudLineCount = 2
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2 // fallback
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) bold(s string) string {
	if !p.color {
		return s
	}
	return ansiBold + s + ansiReset
}

func (p *hudPresenter) dim(s string) string {
	if !p.color {
		return s
	}
	return ansiDim + s
}

func (p *hudPresenter) reset() string {
	if !p.color {
		return ""
	}
	return ansiReset
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}
