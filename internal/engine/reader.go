package engine

import (
	"context"
	"fmt"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/pool"
)

// readWindow fills window from the source starting at off with one backend
// call and reshapes the slots to what actually arrived. Slots are filled in
// order: leading slots come back READ_FULL, the slot holding the tail of a
// short read READ_PARTIAL, and slots that received nothing WRITE_DONE with
// length 0. Remaining is reduced by the bytes read.
func (t *Task) readWindow(ctx context.Context, window []*pool.Slot, off int64) (int, error) {
	bufs := make([][]byte, len(window))
	requested := 0
	for i, s := range window {
		bufs[i] = s.ReadBuf()
		requested += s.Length()
	}

	if err := throttle(ctx, t.cfg.Limiter, requested); err != nil {
		return 0, fmt.Errorf("bandwidth limit at offset %d: %w", off, err)
	}

	n, err := t.readRetrying(bufs, off)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %d, %d slots starting at %d: %w",
			ErrReadFailed, off, len(window), window[0].Index(), err)
	}
	if n > requested {
		return 0, fmt.Errorf("%w: backend returned %d of %d bytes requested at offset %d",
			ErrReadFailed, n, requested, off)
	}
	t.cfg.Stats.AddReads(1)

	left := n
	for _, s := range window {
		take := min(left, s.Length())
		if err := s.Filled(take); err != nil {
			return 0, err
		}
		left -= take
	}

	if n == 0 {
		return 0, t.shortInput(off)
	}
	if n < requested {
		t.cfg.Stats.AddShortReads(1)
		t.log.Debug("short read", "offset", off, "requested", requested, "got", n)
		event.Emit(t.cfg.Events, event.Event{
			Type:   event.ShortRead,
			Offset: off,
			Size:   int64(n),
			Slot:   window[0].Index(),
		})
	}

	t.consumeRead(n)
	event.Emit(t.cfg.Events, event.Event{
		Type:      event.BatchRead,
		Offset:    off,
		Size:      int64(n),
		Slots:     len(window),
		Remaining: t.remaining,
	})
	return n, nil
}

// readRetrying issues the identical read until it is not interrupted or the
// retry budget is spent.
func (t *Task) readRetrying(bufs [][]byte, off int64) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := t.sync.ReadAt(bufs, off)
		if err == nil {
			return n, nil
		}
		if !platform.IsInterrupted(err) || attempt >= t.cfg.MaxRetries {
			return 0, err
		}
		t.cfg.Stats.AddRetries(1)
	}
}
