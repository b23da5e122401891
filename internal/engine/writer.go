package engine

import (
	"context"
	"fmt"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/pool"
)

// flushWindow writes every byte held by window, reissuing the unwritten
// remainder after short writes until each slot is WRITE_DONE. Slots keep
// their reduced shape between rounds; restoration happens at release.
func (t *Task) flushWindow(ctx context.Context, window []*pool.Slot) error {
	engaged := make([]*pool.Slot, 0, len(window))
	for _, s := range window {
		if err := s.BeginWrite(); err != nil {
			return err
		}
		if s.Pending() > 0 {
			engaged = append(engaged, s)
		}
	}

	stalls := 0
	bufs := make([][]byte, 0, len(engaged))
	for len(engaged) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("write at offset %d: %w", engaged[0].FileOffset, err)
		}

		bufs = bufs[:0]
		pending := 0
		for _, s := range engaged {
			if s.State() == pool.WritePartial {
				if err := s.Resubmit(); err != nil {
					return err
				}
			}
			bufs = append(bufs, s.PendingBuf())
			pending += s.Pending()
		}
		head := engaged[0]
		off := head.FileOffset + int64(head.Offset())

		wn, err := t.writeRetrying(bufs, off)
		if err != nil {
			return fmt.Errorf("%w: offset %d, slot %d: %w", ErrWriteFailed, off, head.Index(), err)
		}
		if wn > pending {
			return fmt.Errorf("%w: backend reported %d of %d bytes at offset %d",
				ErrWriteFailed, wn, pending, off)
		}
		t.cfg.Stats.AddWrites(1)

		if wn == 0 {
			stalls++
			t.cfg.Stats.AddStalls(1)
			if stalls > t.cfg.MaxStalls {
				return fmt.Errorf("%w: %d zero-byte writes at offset %d, slot %d",
					ErrWriteStalled, stalls, off, head.Index())
			}
			continue
		}
		stalls = 0

		left := wn
		for _, s := range engaged {
			take := min(left, s.Pending())
			if err := s.Wrote(take); err != nil {
				return err
			}
			left -= take
		}
		t.copied += int64(wn)
		t.cfg.Stats.AddBytesWritten(int64(wn))

		if wn < pending {
			t.cfg.Stats.AddShortWrites(1)
			t.log.Debug("short write", "offset", off, "requested", pending, "wrote", wn)
			event.Emit(t.cfg.Events, event.Event{
				Type:   event.ShortWrite,
				Offset: off,
				Size:   int64(wn),
				Slot:   head.Index(),
			})
		}

		engaged = unwritten(engaged)
	}
	return nil
}

// unwritten drops slots that have nothing left to write, keeping order.
func unwritten(slots []*pool.Slot) []*pool.Slot {
	out := slots[:0]
	for _, s := range slots {
		if s.State() != pool.WriteDone {
			out = append(out, s)
		}
	}
	return out
}

func (t *Task) writeRetrying(bufs [][]byte, off int64) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := t.sync.WriteAt(bufs, off)
		if err == nil {
			return n, nil
		}
		if !platform.IsInterrupted(err) || attempt >= t.cfg.MaxRetries {
			return 0, err
		}
		t.cfg.Stats.AddRetries(1)
	}
}
