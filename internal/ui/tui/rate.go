package tui

import (
	"fmt"
	"strings"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/stats"
	"github.com/bamsammich/ringcp/internal/ui"
)

// slotGridMax caps the slot grid; larger pools are drawn proportionally.
const slotGridMax = 64

type rateView struct {
	busySlots int // slots holding data read but not yet written
}

func (r *rateView) handleEvent(ev event.Event, poolSize int) {
	switch ev.Type {
	case event.BatchRead:
		r.busySlots = min(r.busySlots+ev.Slots, poolSize)
	case event.BatchWritten:
		r.busySlots = max(r.busySlots-ev.Slots, 0)
	case event.CopyCompleted, event.CopyFailed:
		r.busySlots = 0
	}
}

func (r *rateView) view(width int, snap stats.Snapshot, collector stats.ReadTicker, poolSize int) string {
	width = max(width, 20)

	var b strings.Builder

	speed := collector.RollingSpeed(5)
	b.WriteString("  " + styleBigNumber.Render(ui.FormatRate(speed)))
	b.WriteString("\n\n")

	sparkWidth := max(width-4, 10)
	spark := ui.Sparkline(collector.SparklineData(sparkWidth), sparkWidth)
	b.WriteString("  " + styleSparkline.Render(spark))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  %s   %s   %s\n",
		styleSpeed.Render(fmt.Sprintf("%s reads", ui.FormatCount(snap.Reads))),
		styleSpeed.Render(fmt.Sprintf("%s writes", ui.FormatCount(snap.Writes))),
		styleSize.Render(fmt.Sprintf("%s / %s", ui.FormatBytes(snap.BytesWritten), ui.FormatBytes(snap.BytesTotal))))
	fmt.Fprintf(&b, "  %s   %s   %s   %s\n\n",
		styleIconShort.Render(fmt.Sprintf("%s short reads", ui.FormatCount(snap.ShortReads))),
		styleIconShort.Render(fmt.Sprintf("%s short writes", ui.FormatCount(snap.ShortWrites))),
		styleSize.Render(fmt.Sprintf("%s retries", ui.FormatCount(snap.Retries))),
		styleSize.Render(fmt.Sprintf("peak %d in flight", snap.MaxInFlight)))

	b.WriteString("  " + styleDivider.Render("slots") + "  ")
	b.WriteString(r.renderSlotGrid(poolSize))
	b.WriteByte('\n')

	return b.String()
}

func (r *rateView) renderSlotGrid(total int) string {
	cells := min(total, slotGridMax)
	if cells <= 0 {
		return ""
	}
	busy := 0
	if r.busySlots > 0 {
		busy = max((r.busySlots*cells+total-1)/total, 1)
	}
	return styleSlotBusy.Render(strings.Repeat("▪", busy)) +
		styleSlotIdle.Render(strings.Repeat("□", cells-busy))
}
