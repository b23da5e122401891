package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ringcp/internal/stats"
)

// plainPresenter writes periodic progress lines, for logs and pipes where a
// redrawn display would be noise. Verbose mode adds one line per short
// transfer.
type plainPresenter struct {
	w        io.Writer
	stats    *stats.Collector
	verbose  bool
	progress bool
}

const plainInterval = 5 * time.Second

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(plainInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			if p.progress {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ShortRead:
		if p.verbose {
			fmt.Fprintf(p.w, "short read   offset %d  slot %d  got %s\n",
				ev.Offset, ev.Slot, FormatBytes(ev.Size))
		}
	case ShortWrite:
		if p.verbose {
			fmt.Fprintf(p.w, "short write  offset %d  slot %d  wrote %s\n",
				ev.Offset, ev.Slot, FormatBytes(ev.Size))
		}
	case CopyFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "failed after %s: %s\n", FormatBytes(ev.Total), errMsg)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	speed := p.stats.RollingSpeed(10)
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesWritten) / float64(snap.BytesTotal) * 100
		fmt.Fprintf(p.w, "progress: %.0f%% %s/%s %s eta %s\n",
			pct,
			FormatBytes(snap.BytesWritten), FormatBytes(snap.BytesTotal),
			FormatRate(speed),
			FormatETA(p.stats.ETA()),
		)
		return
	}
	fmt.Fprintf(p.w, "progress: %s copied %s\n", FormatBytes(snap.BytesWritten), FormatRate(speed))
}
