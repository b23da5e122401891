// Package pool owns the fixed set of reusable buffers a copy task cycles
// through. Memory is one arena sliced into equally sized slots; slots are
// handed out by index and must come back in canonical shape.
package pool

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
)

var (
	// ErrExhausted is returned by Acquire when no slot is free. It is a
	// backpressure signal, not a failure.
	ErrExhausted = errors.New("pool exhausted")

	// ErrBadTransition reports a slot state change the lifecycle forbids.
	ErrBadTransition = errors.New("illegal slot transition")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pool closed")
)

// Pool is a fixed number of fixed-capacity slots. It is not safe for
// concurrent use; a copy task drives it from a single goroutine.
type Pool struct {
	arena    []byte
	slots    []*Slot
	free     *queue.Queue // of int slot indexes, FIFO
	capacity int
	closed   bool
}

// New allocates size slots of capacity bytes each.
func New(size, capacity int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("slot capacity must be positive, got %d", capacity)
	}

	p := &Pool{
		arena:    make([]byte, size*capacity),
		slots:    make([]*Slot, size),
		free:     queue.New(),
		capacity: capacity,
	}
	for i := range size {
		// Full slice expression keeps appends from spilling into the next slot.
		buf := p.arena[i*capacity : (i+1)*capacity : (i+1)*capacity]
		s := &Slot{index: i, buf: buf}
		s.reset()
		p.slots[i] = s
		p.free.Add(i)
	}
	return p, nil
}

// Size returns the number of slots.
func (p *Pool) Size() int { return len(p.slots) }

// Capacity returns the per-slot capacity in bytes.
func (p *Pool) Capacity() int { return p.capacity }

// Free returns how many slots are currently FREE.
func (p *Pool) Free() int {
	if p.closed {
		return 0
	}
	return p.free.Length()
}

// Slot returns the slot with the given index.
func (p *Pool) Slot(i int) *Slot { return p.slots[i] }

// Acquire hands out up to max FREE slots in FIFO order, moving each to
// READ_PENDING with length set to the full capacity.
func (p *Pool) Acquire(max int) ([]*Slot, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if max <= 0 {
		return nil, fmt.Errorf("acquire %d slots: window must be positive", max)
	}
	if p.free.Length() == 0 {
		return nil, ErrExhausted
	}

	n := min(max, p.free.Length())
	window := make([]*Slot, 0, n)
	for range n {
		s := p.slots[p.free.Remove().(int)]
		if err := s.moveTo(ReadPending); err != nil {
			return nil, err
		}
		window = append(window, s)
	}
	return window, nil
}

// Release returns a WRITE_DONE slot to the free list in canonical shape.
func (p *Pool) Release(s *Slot) error {
	if p.closed {
		return ErrClosed
	}
	if s == nil {
		return errors.New("release nil slot")
	}
	if s.index < 0 || s.index >= len(p.slots) || p.slots[s.index] != s {
		return fmt.Errorf("slot %d does not belong to this pool", s.index)
	}
	if s.state != WriteDone {
		return fmt.Errorf("release slot %d in %s: %w", s.index, s.state, ErrBadTransition)
	}
	s.reset()
	p.free.Add(s.index)
	return nil
}

// ReleaseAll releases every slot in window.
func (p *Pool) ReleaseAll(window []*Slot) error {
	for _, s := range window {
		if err := p.Release(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drops the arena. Safe to call more than once.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	for _, s := range p.slots {
		s.buf = nil
	}
	p.arena = nil
	p.free = queue.New()
}
