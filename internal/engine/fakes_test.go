package engine

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ringcp/internal/platform"
)

// memBackend is a scripted in-memory Sync backend. Each read or write call
// consumes one entry of its script as a byte cap (-1 for no cap) and one
// entry of its error list; exhausted scripts stop constraining calls.
type memBackend struct {
	src     []byte
	dst     []byte
	vectors int

	readScript  []int
	writeScript []int
	readErrs    []error
	writeErrs   []error

	readCalls  int
	writeCalls int

	// beforeWrite runs at the start of every write call.
	beforeWrite func()
}

func newMem(src []byte, vectors int) *memBackend {
	return &memBackend{src: src, vectors: vectors}
}

func (m *memBackend) Method() platform.Method { return platform.Vectored }
func (m *memBackend) MaxVectors() int         { return m.vectors }
func (m *memBackend) Close() error            { return nil }

func pop[T any](s *[]T, empty T) T {
	if len(*s) == 0 {
		return empty
	}
	v := (*s)[0]
	*s = (*s)[1:]
	return v
}

func (m *memBackend) ReadAt(bufs [][]byte, off int64) (int, error) {
	m.readCalls++
	if err := pop(&m.readErrs, nil); err != nil {
		return 0, err
	}
	limit := pop(&m.readScript, -1)

	n := 0
	for _, b := range bufs[:min(len(bufs), m.vectors)] {
		for i := range b {
			pos := off + int64(n)
			if (limit >= 0 && n >= limit) || pos >= int64(len(m.src)) {
				return n, nil
			}
			b[i] = m.src[pos]
			n++
		}
	}
	return n, nil
}

func (m *memBackend) WriteAt(bufs [][]byte, off int64) (int, error) {
	m.writeCalls++
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	if err := pop(&m.writeErrs, nil); err != nil {
		return 0, err
	}
	limit := pop(&m.writeScript, -1)

	n := 0
	for _, b := range bufs[:min(len(bufs), m.vectors)] {
		for _, c := range b {
			if limit >= 0 && n >= limit {
				return n, nil
			}
			pos := int(off) + n
			for len(m.dst) <= pos {
				m.dst = append(m.dst, 0)
			}
			m.dst[pos] = c
			n++
		}
	}
	return n, nil
}

type ringOp struct {
	slot int
	op   platform.Op
	buf  []byte
	off  int64
}

// reverseRing is a Ring over a memBackend that completes each flushed batch
// in reverse submission order, so the scheduler never sees completions in
// the order it issued them.
type reverseRing struct {
	mem       *memBackend
	depth     int
	staged    []ringOp
	submitted []ringOp
	maxSeen   int
}

func newReverseRing(mem *memBackend, depth int) *reverseRing {
	return &reverseRing{mem: mem, depth: depth}
}

func (r *reverseRing) Method() platform.Method { return platform.Emulated }
func (r *reverseRing) Depth() int              { return r.depth }
func (r *reverseRing) InFlight() int           { return len(r.staged) + len(r.submitted) }
func (r *reverseRing) Close() error            { return nil }

func (r *reverseRing) SubmitRead(slot int, buf []byte, off int64) error {
	return r.stage(ringOp{slot: slot, op: platform.OpRead, buf: buf, off: off})
}

func (r *reverseRing) SubmitWrite(slot int, buf []byte, off int64) error {
	return r.stage(ringOp{slot: slot, op: platform.OpWrite, buf: buf, off: off})
}

func (r *reverseRing) stage(op ringOp) error {
	if r.InFlight() >= r.depth {
		return platform.ErrQueueFull
	}
	r.staged = append(r.staged, op)
	r.maxSeen = max(r.maxSeen, r.InFlight())
	return nil
}

func (r *reverseRing) Flush() error {
	r.submitted = append(r.submitted, r.staged...)
	r.staged = nil
	return nil
}

func (r *reverseRing) Harvest(ctx context.Context, _ int) ([]platform.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops := r.submitted
	r.submitted = nil

	comps := make([]platform.Completion, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		c := platform.Completion{Slot: op.slot, Op: op.op}
		if op.op == platform.OpRead {
			c.N, c.Err = r.mem.ReadAt([][]byte{op.buf}, op.off)
		} else {
			c.N, c.Err = r.mem.WriteAt([][]byte{op.buf}, op.off)
		}
		comps = append(comps, c)
	}
	return comps, nil
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func repeat(v, n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}
