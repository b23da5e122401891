package engine

import (
	"context"
	"fmt"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/pool"
)

// runBatched copies through a blocking backend one window at a time: read a
// window, write all of it, release it, advance. Every slot is FREE again
// before the next window is acquired, so a pool of one slot cannot deadlock.
func (t *Task) runBatched(ctx context.Context) error {
	capacity := int64(t.pool.Capacity())
	var off int64

	for t.remaining > 0 && !t.endOfInput {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("copy interrupted at offset %d: %w", off, err)
		}

		want := min(t.pool.Free(), t.sync.MaxVectors(), int(ceilDiv(t.remaining, capacity)))
		window, err := t.pool.Acquire(want)
		if err != nil {
			return fmt.Errorf("acquire window at offset %d: %w", off, err)
		}
		if err := shapeWindow(window, off, t.remaining); err != nil {
			return err
		}
		t.cfg.Stats.AddBatches(1)

		n, err := t.readWindow(ctx, window, off)
		if err != nil {
			return err
		}
		if err := t.flushWindow(ctx, window); err != nil {
			return err
		}
		if err := t.pool.ReleaseAll(window); err != nil {
			return err
		}

		event.Emit(t.cfg.Events, event.Event{
			Type:      event.BatchWritten,
			Offset:    off,
			Size:      int64(n),
			Slots:     len(window),
			Total:     t.copied,
			Remaining: t.remaining,
		})
		off += int64(n)
	}
	return nil
}

// shapeWindow assigns consecutive file ranges to a freshly acquired window.
// Every slot asks for its full capacity except the one covering the tail of
// the declared size.
func shapeWindow(window []*pool.Slot, off, remaining int64) error {
	for _, s := range window {
		n := min(int64(s.Capacity()), remaining)
		s.FileOffset = off
		if err := s.SetLength(int(n)); err != nil {
			return err
		}
		off += n
		remaining -= n
	}
	return nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
