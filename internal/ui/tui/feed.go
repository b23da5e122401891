package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/ui"
)

// maxHistory bounds the batch log; a large file at a small slot capacity
// produces millions of batches.
const maxHistory = 10000

type entryKind int

const (
	entryBatch entryKind = iota
	entryShortRead
	entryShortWrite
	entryEndOfInput
	entryFailed
)

type logEntry struct {
	kind   entryKind
	offset int64
	size   int64
	slots  int
	slot   int
	errMsg string
}

type inFlightBatch struct {
	offset int64
	size   int64
	slots  int
}

// feedView is the scrolling log of batches and short transfers. Failures
// are pinned below it.
type feedView struct {
	inFlight     map[int64]inFlightBatch // keyed by file offset
	history      []logEntry
	dropped      int // entries trimmed off the front of history
	errors       []logEntry
	scrollOffset int
	autoScroll   bool
}

func newFeedView() feedView {
	return feedView{
		inFlight:   make(map[int64]inFlightBatch),
		autoScroll: true,
	}
}

func (f *feedView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.BatchRead:
		f.inFlight[ev.Offset] = inFlightBatch{offset: ev.Offset, size: ev.Size, slots: ev.Slots}

	case event.BatchWritten:
		delete(f.inFlight, ev.Offset)
		f.add(logEntry{kind: entryBatch, offset: ev.Offset, size: ev.Size, slots: ev.Slots})

	case event.ShortRead:
		f.add(logEntry{kind: entryShortRead, offset: ev.Offset, size: ev.Size, slot: ev.Slot})

	case event.ShortWrite:
		f.add(logEntry{kind: entryShortWrite, offset: ev.Offset, size: ev.Size, slot: ev.Slot})

	case event.EndOfInput:
		f.add(logEntry{kind: entryEndOfInput, offset: ev.Offset})

	case event.CopyFailed:
		clear(f.inFlight)
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		e := logEntry{kind: entryFailed, offset: ev.Total, errMsg: errMsg}
		f.add(e)
		f.errors = append(f.errors, e)

	case event.CopyCompleted:
		clear(f.inFlight)
	}
}

func (f *feedView) add(e logEntry) {
	f.history = append(f.history, e)
	if over := len(f.history) - maxHistory; over > 0 {
		f.history = slices.Delete(f.history, 0, over)
		f.dropped += over
		f.scrollOffset = max(f.scrollOffset-over, 0)
	}
}

func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom follows new entries again.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int) string {
	width = max(width, 20)

	inFlightCount := min(len(f.inFlight), max(height/3, 1))
	errCount := min(len(f.errors), 5)

	dividers := 0
	if inFlightCount > 0 {
		dividers++
	}
	if errCount > 0 {
		dividers++
	}
	if len(f.history) > 0 {
		dividers++
	}

	logHeight := max(height-inFlightCount-errCount-dividers, 1)

	maxOffset := max(len(f.history)-logHeight, 0)
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	f.scrollOffset = min(max(f.scrollOffset, 0), maxOffset)

	var b strings.Builder

	if inFlightCount > 0 {
		b.WriteString(styleDivider.Render("─ in flight"))
		b.WriteByte('\n')
		b.WriteString(f.renderInFlight(inFlightCount))
	}

	if len(f.history) > 0 {
		label := fmt.Sprintf("─ log (%d)", f.dropped+len(f.history))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		end := min(f.scrollOffset+logHeight, len(f.history))
		for _, e := range f.history[f.scrollOffset:end] {
			b.WriteString(renderEntry(e))
			b.WriteByte('\n')
		}
	}

	if errCount > 0 {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ errors (%d)", len(f.errors))))
		b.WriteByte('\n')
		for _, e := range f.errors[len(f.errors)-errCount:] {
			b.WriteString(renderEntry(e))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// renderInFlight lists the lowest-offset batches still waiting on a write.
func (f *feedView) renderInFlight(n int) string {
	offsets := make([]int64, 0, len(f.inFlight))
	for off := range f.inFlight {
		offsets = append(offsets, off)
	}
	slices.Sort(offsets)

	var b strings.Builder
	for _, off := range offsets[:n] {
		bt := f.inFlight[off]
		fmt.Fprintf(&b, "  %s  %s  %s  %s\n",
			styleInFlight.Render("⟩"),
			styleOffset.Render(fmt.Sprintf("@%-14d", bt.offset)),
			styleSize.Render(fmt.Sprintf("%10s", ui.FormatBytes(bt.size))),
			styleSize.Render(fmt.Sprintf("%d slots", bt.slots)))
	}
	return b.String()
}

func renderEntry(e logEntry) string {
	off := styleOffset.Render(fmt.Sprintf("@%-14d", e.offset))
	size := styleSize.Render(fmt.Sprintf("%10s", ui.FormatBytes(e.size)))
	switch e.kind {
	case entryShortRead:
		return fmt.Sprintf("  %s  %s  %s  %s", styleIconShort.Render("↯"), off, size,
			styleIconShort.Render(fmt.Sprintf("short read  slot %d", e.slot)))
	case entryShortWrite:
		return fmt.Sprintf("  %s  %s  %s  %s", styleIconShort.Render("↯"), off, size,
			styleIconShort.Render(fmt.Sprintf("short write slot %d", e.slot)))
	case entryEndOfInput:
		return fmt.Sprintf("  %s  %s  %s", styleInFlight.Render("■"), off,
			styleSize.Render("end of input"))
	case entryFailed:
		return fmt.Sprintf("  %s  %s  %s", styleIconFailed.Render("✗"), off,
			styleError.Render(e.errMsg))
	default:
		return fmt.Sprintf("  %s  %s  %s  %s", styleIconDone.Render("✓"), off, size,
			styleSize.Render(fmt.Sprintf("%d slots", e.slots)))
	}
}

// reportLine renders e without styling for the saved report.
func reportLine(e logEntry) string {
	switch e.kind {
	case entryShortRead:
		return fmt.Sprintf("~  @%-14d  %10s  short read  slot %d", e.offset, ui.FormatBytes(e.size), e.slot)
	case entryShortWrite:
		return fmt.Sprintf("~  @%-14d  %10s  short write slot %d", e.offset, ui.FormatBytes(e.size), e.slot)
	case entryEndOfInput:
		return fmt.Sprintf("-  @%-14d  end of input", e.offset)
	case entryFailed:
		return fmt.Sprintf("x  @%-14d  %s", e.offset, e.errMsg)
	default:
		return fmt.Sprintf("v  @%-14d  %10s  %d slots", e.offset, ui.FormatBytes(e.size), e.slots)
	}
}
