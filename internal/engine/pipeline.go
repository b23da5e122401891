package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/eapache/queue"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/pool"
)

// span is a file range that still has to be read.
type span struct {
	off int64
	n   int
}

// pipeline is the per-run state of the ring scheduler.
type pipeline struct {
	*Task

	next     int64        // first byte never assigned to a read
	refills  *queue.Queue // of span, unread tails of short reads
	deferred *queue.Queue // of int slot indexes whose write met a full queue
	retries  []int        // interrupted completions per slot, this cycle
	stalls   []int        // consecutive zero-byte writes per slot
}

// runPipelined copies through a ring backend. Each slot moves independently:
// as soon as its read completes it is queued for write at its own file
// offset, and freed slots are immediately refilled with the next range. Write
// submissions take queue depth before reads do.
func (t *Task) runPipelined(ctx context.Context) error {
	p := &pipeline{
		Task:     t,
		refills:  queue.New(),
		deferred: queue.New(),
		retries:  make([]int, t.pool.Size()),
		stalls:   make([]int, t.pool.Size()),
	}
	if err := p.loop(ctx); err != nil {
		p.drain()
		return err
	}
	return nil
}

func (p *pipeline) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("copy interrupted with %d bytes remaining: %w", p.remaining, err)
		}

		if err := p.submitDeferred(); err != nil {
			return err
		}
		if err := p.submitReads(ctx); err != nil {
			return err
		}
		if err := p.ring.Flush(); err != nil {
			return fmt.Errorf("flush submissions: %w", err)
		}

		inFlight := p.ring.InFlight()
		if p.remaining == 0 && inFlight == 0 && p.deferred.Length() == 0 {
			return nil
		}
		if inFlight == 0 {
			// Nothing can complete, so nothing can make progress.
			return fmt.Errorf("pipeline idle with %d bytes remaining and %d deferred writes",
				p.remaining, p.deferred.Length())
		}
		p.cfg.Stats.ObserveInFlight(int64(inFlight))

		comps, err := p.ring.Harvest(ctx, 1)
		if err != nil {
			return fmt.Errorf("harvest completions: %w", err)
		}
		for _, c := range comps {
			if err := p.complete(c); err != nil {
				return err
			}
		}
	}
}

// submitDeferred retries writes that previously met a full queue, oldest
// first.
func (p *pipeline) submitDeferred() error {
	for p.deferred.Length() > 0 {
		s := p.pool.Slot(p.deferred.Peek().(int)) //nolint:forcetypeassert // only slot indexes are deferred
		err := p.ring.SubmitWrite(s.Index(), s.PendingBuf(), s.FileOffset+int64(s.Offset()))
		if errors.Is(err, platform.ErrQueueFull) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: offset %d, slot %d: %w", ErrWriteFailed, s.FileOffset, s.Index(), err)
		}
		p.deferred.Remove()
	}
	return nil
}

// submitReads assigns ranges to free slots while the queue has room and no
// write is waiting for it.
func (p *pipeline) submitReads(ctx context.Context) error {
	for p.deferred.Length() == 0 && p.ring.InFlight() < p.ring.Depth() && p.pool.Free() > 0 {
		sp, fromRefill, ok := p.nextSpan()
		if !ok {
			return nil
		}

		window, err := p.pool.Acquire(1)
		if err != nil {
			return fmt.Errorf("acquire slot at offset %d: %w", sp.off, err)
		}
		s := window[0]
		s.FileOffset = sp.off
		if err := s.SetLength(sp.n); err != nil {
			return err
		}

		if err := throttle(ctx, p.cfg.Limiter, sp.n); err != nil {
			return fmt.Errorf("bandwidth limit at offset %d: %w", sp.off, err)
		}
		err = p.ring.SubmitRead(s.Index(), s.ReadBuf(), sp.off)
		if errors.Is(err, platform.ErrQueueFull) {
			return p.unassign(s)
		}
		if err != nil {
			return fmt.Errorf("%w: offset %d, slot %d: %w", ErrReadFailed, sp.off, s.Index(), err)
		}

		if fromRefill {
			p.refills.Remove()
		} else {
			p.next += int64(sp.n)
		}
	}
	return nil
}

// nextSpan picks the range the next read should cover: outstanding refills
// before new territory.
func (p *pipeline) nextSpan() (span, bool, bool) {
	if p.endOfInput {
		return span{}, false, false
	}
	if p.refills.Length() > 0 {
		return p.refills.Peek().(span), true, true //nolint:forcetypeassert // only spans are queued
	}
	if p.next >= p.size {
		return span{}, false, false
	}
	n := min(int64(p.pool.Capacity()), p.size-p.next)
	return span{off: p.next, n: int(n)}, false, true
}

// unassign returns a slot whose read was never submitted.
func (p *pipeline) unassign(s *pool.Slot) error {
	if err := s.Filled(0); err != nil {
		return err
	}
	return p.pool.Release(s)
}

func (p *pipeline) complete(c platform.Completion) error {
	if c.Slot < 0 || c.Slot >= p.pool.Size() {
		return fmt.Errorf("completion for unknown slot %d", c.Slot)
	}
	s := p.pool.Slot(c.Slot)
	switch c.Op {
	case platform.OpRead:
		return p.readDone(s, c)
	case platform.OpWrite:
		return p.writeDone(s, c)
	default:
		return fmt.Errorf("completion for slot %d has unknown op %v", c.Slot, c.Op)
	}
}

func (p *pipeline) readDone(s *pool.Slot, c platform.Completion) error {
	if c.Err != nil {
		if platform.IsInterrupted(c.Err) && p.retries[s.Index()] < p.cfg.MaxRetries {
			p.retries[s.Index()]++
			p.cfg.Stats.AddRetries(1)
			return p.resubmitRead(s)
		}
		return fmt.Errorf("%w: offset %d, slot %d: %w", ErrReadFailed, s.FileOffset, s.Index(), c.Err)
	}

	requested := s.Length()
	if c.N > requested {
		return fmt.Errorf("%w: backend returned %d of %d bytes for slot %d",
			ErrReadFailed, c.N, requested, s.Index())
	}
	if err := s.Filled(c.N); err != nil {
		return err
	}
	p.cfg.Stats.AddReads(1)

	if c.N == 0 {
		return p.shortInput(s.FileOffset)
	}
	if c.N < requested {
		tail := span{off: s.FileOffset + int64(c.N), n: requested - c.N}
		p.refills.Add(tail)
		p.cfg.Stats.AddShortReads(1)
		p.log.Debug("short read", "offset", s.FileOffset, "slot", s.Index(),
			"requested", requested, "got", c.N)
		event.Emit(p.cfg.Events, event.Event{
			Type:   event.ShortRead,
			Offset: s.FileOffset,
			Size:   int64(c.N),
			Slot:   s.Index(),
		})
	}

	p.consumeRead(c.N)
	event.Emit(p.cfg.Events, event.Event{
		Type:      event.BatchRead,
		Offset:    s.FileOffset,
		Size:      int64(c.N),
		Slots:     1,
		Slot:      s.Index(),
		Remaining: p.remaining,
	})

	if err := s.BeginWrite(); err != nil {
		return err
	}
	return p.submitWrite(s)
}

// resubmitRead re-issues an interrupted read unchanged. If the queue has no
// room the range goes back to the refill queue and the slot is freed.
func (p *pipeline) resubmitRead(s *pool.Slot) error {
	err := p.ring.SubmitRead(s.Index(), s.ReadBuf(), s.FileOffset)
	if errors.Is(err, platform.ErrQueueFull) {
		p.refills.Add(span{off: s.FileOffset, n: s.Length()})
		p.retries[s.Index()] = 0
		return p.unassign(s)
	}
	if err != nil {
		return fmt.Errorf("%w: offset %d, slot %d: %w", ErrReadFailed, s.FileOffset, s.Index(), err)
	}
	return nil
}

func (p *pipeline) writeDone(s *pool.Slot, c platform.Completion) error {
	idx := s.Index()
	off := s.FileOffset + int64(s.Offset())

	if c.Err != nil {
		if platform.IsInterrupted(c.Err) && p.retries[idx] < p.cfg.MaxRetries {
			p.retries[idx]++
			p.cfg.Stats.AddRetries(1)
			return p.submitWrite(s)
		}
		return fmt.Errorf("%w: offset %d, slot %d: %w", ErrWriteFailed, off, idx, c.Err)
	}
	if c.N > s.Pending() {
		return fmt.Errorf("%w: backend reported %d of %d bytes for slot %d",
			ErrWriteFailed, c.N, s.Pending(), idx)
	}
	p.cfg.Stats.AddWrites(1)

	if c.N == 0 {
		p.stalls[idx]++
		p.cfg.Stats.AddStalls(1)
		if p.stalls[idx] > p.cfg.MaxStalls {
			return fmt.Errorf("%w: %d zero-byte writes at offset %d, slot %d",
				ErrWriteStalled, p.stalls[idx], off, idx)
		}
		return p.submitWrite(s)
	}
	p.stalls[idx] = 0

	pending := s.Pending()
	if err := s.Wrote(c.N); err != nil {
		return err
	}
	p.copied += int64(c.N)
	p.cfg.Stats.AddBytesWritten(int64(c.N))

	if s.State() == pool.WritePartial {
		p.cfg.Stats.AddShortWrites(1)
		p.log.Debug("short write", "offset", off, "slot", idx, "requested", pending, "wrote", c.N)
		event.Emit(p.cfg.Events, event.Event{
			Type:   event.ShortWrite,
			Offset: off,
			Size:   int64(c.N),
			Slot:   idx,
		})
		if err := s.Resubmit(); err != nil {
			return err
		}
		return p.submitWrite(s)
	}

	event.Emit(p.cfg.Events, event.Event{
		Type:      event.BatchWritten,
		Offset:    s.FileOffset,
		Size:      int64(s.Length()),
		Slots:     1,
		Slot:      idx,
		Total:     p.copied,
		Remaining: p.remaining,
	})
	p.retries[idx] = 0
	return p.pool.Release(s)
}

// submitWrite queues the slot's pending region, deferring it when the ring
// is full or earlier writes are already waiting.
func (p *pipeline) submitWrite(s *pool.Slot) error {
	if p.deferred.Length() > 0 {
		p.deferred.Add(s.Index())
		return nil
	}
	err := p.ring.SubmitWrite(s.Index(), s.PendingBuf(), s.FileOffset+int64(s.Offset()))
	if errors.Is(err, platform.ErrQueueFull) {
		p.deferred.Add(s.Index())
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: offset %d, slot %d: %w", ErrWriteFailed, s.FileOffset, s.Index(), err)
	}
	return nil
}

// drain reaps every operation still owned by the ring so no slot memory is
// released under an outstanding request. Results are discarded.
func (p *pipeline) drain() {
	ctx := context.Background()
	for p.ring.InFlight() > 0 {
		if err := p.ring.Flush(); err != nil {
			p.log.Debug("flush during drain", "error", err)
			return
		}
		comps, err := p.ring.Harvest(ctx, 1)
		if err != nil || len(comps) == 0 {
			p.log.Debug("drain stopped", "in_flight", p.ring.InFlight(), "error", err)
			return
		}
	}
}
