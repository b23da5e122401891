package platform

import (
	"context"
	"fmt"
	"os"

	"github.com/eapache/queue"
)

type emulatedOp struct {
	slot int
	op   Op
	buf  []byte
	off  int64
}

// EmulatedRing implements Ring on top of a blocking backend. Staged requests
// are executed in submission order at Flush and their completions wait in a
// FIFO until harvested, so the pipelined scheduler runs unchanged where
// io_uring is unavailable.
type EmulatedRing struct {
	io     Sync
	depth  int
	staged *queue.Queue // of emulatedOp
	cq     *queue.Queue // of Completion
}

// NewEmulatedRing creates an emulated ring over single-buffer pread/pwrite.
func NewEmulatedRing(src, dst *os.File, depth int) (*EmulatedRing, error) {
	return NewEmulatedRingOver(NewSingle(src, dst), depth)
}

// NewEmulatedRingOver creates an emulated ring that performs its I/O through
// s. Only the first buffer of each call is used.
func NewEmulatedRingOver(s Sync, depth int) (*EmulatedRing, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("ring depth must be positive, got %d", depth)
	}
	return &EmulatedRing{
		io:     s,
		depth:  depth,
		staged: queue.New(),
		cq:     queue.New(),
	}, nil
}

func (r *EmulatedRing) Method() Method { return Emulated }
func (r *EmulatedRing) Depth() int     { return r.depth }

// InFlight counts staged requests and completions not yet harvested; both
// occupy queue depth.
func (r *EmulatedRing) InFlight() int { return r.staged.Length() + r.cq.Length() }

func (r *EmulatedRing) SubmitRead(slot int, buf []byte, off int64) error {
	return r.stage(emulatedOp{slot: slot, op: OpRead, buf: buf, off: off})
}

func (r *EmulatedRing) SubmitWrite(slot int, buf []byte, off int64) error {
	return r.stage(emulatedOp{slot: slot, op: OpWrite, buf: buf, off: off})
}

func (r *EmulatedRing) stage(op emulatedOp) error {
	if r.InFlight() >= r.depth {
		return ErrQueueFull
	}
	r.staged.Add(op)
	return nil
}

// Flush performs every staged request.
func (r *EmulatedRing) Flush() error {
	for r.staged.Length() > 0 {
		op := r.staged.Remove().(emulatedOp) //nolint:forcetypeassert // only emulatedOp is staged
		bufs := [][]byte{op.buf}

		var n int
		var err error
		if op.op == OpRead {
			n, err = r.io.ReadAt(bufs, op.off)
		} else {
			n, err = r.io.WriteAt(bufs, op.off)
		}
		r.cq.Add(Completion{Slot: op.slot, Op: op.op, N: n, Err: err})
	}
	return nil
}

// Harvest returns every queued completion. Completions only appear at Flush,
// so waiting for more than are queued would never finish; atLeast is capped.
func (r *EmulatedRing) Harvest(ctx context.Context, atLeast int) ([]Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if atLeast > r.cq.Length() && r.staged.Length() > 0 {
		if err := r.Flush(); err != nil {
			return nil, err
		}
	}
	out := make([]Completion, 0, r.cq.Length())
	for r.cq.Length() > 0 {
		out = append(out, r.cq.Remove().(Completion)) //nolint:forcetypeassert // only Completion is queued
	}
	return out, nil
}

func (r *EmulatedRing) Close() error {
	return r.io.Close()
}
