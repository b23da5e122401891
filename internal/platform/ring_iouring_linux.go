//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"
)

// ringTag travels with every request so a completion can be matched back to
// its slot regardless of completion order.
type ringTag struct {
	slot int
	op   Op
}

// IOURingBackend submits pread/pwrite requests through io_uring.
type IOURingBackend struct {
	iour  *iouring.IOURing
	ch    chan iouring.Result
	srcFd int
	dstFd int
	depth int

	staged    []iouring.PrepRequest
	submitted int
}

// NewIOURing creates a ring of the given depth. Returns an error wrapping
// ErrUnsupported if the kernel is too old (< 5.6) or io_uring is blocked.
//
//nolint:ireturn,gosec // constructor mirrors the non-Linux stub; fds are small
func NewIOURing(src, dst *os.File, depth int) (Ring, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("ring depth must be positive, got %d", depth)
	}
	if !kernelSupportsIOURing() {
		return nil, fmt.Errorf("io_uring: %w", ErrUnsupported)
	}

	iour, err := iouring.New(uint(depth))
	if err != nil {
		return nil, fmt.Errorf("io_uring setup: %w (%v)", ErrUnsupported, err)
	}

	return &IOURingBackend{
		iour:   iour,
		ch:     make(chan iouring.Result, depth),
		srcFd:  int(src.Fd()),
		dstFd:  int(dst.Fd()),
		depth:  depth,
		staged: make([]iouring.PrepRequest, 0, depth),
	}, nil
}

func (r *IOURingBackend) Method() Method { return IOURing }
func (r *IOURingBackend) Depth() int     { return r.depth }
func (r *IOURingBackend) InFlight() int  { return len(r.staged) + r.submitted }

// SubmitRead stages a pread of buf at off for slot.
func (r *IOURingBackend) SubmitRead(slot int, buf []byte, off int64) error {
	if r.InFlight() >= r.depth {
		return ErrQueueFull
	}
	//nolint:gosec // G115: offsets are non-negative
	req := iouring.Pread(r.srcFd, buf, uint64(off)).WithInfo(ringTag{slot: slot, op: OpRead})
	r.staged = append(r.staged, req)
	return nil
}

// SubmitWrite stages a pwrite of buf at off for slot.
func (r *IOURingBackend) SubmitWrite(slot int, buf []byte, off int64) error {
	if r.InFlight() >= r.depth {
		return ErrQueueFull
	}
	//nolint:gosec // G115: offsets are non-negative
	req := iouring.Pwrite(r.dstFd, buf, uint64(off)).WithInfo(ringTag{slot: slot, op: OpWrite})
	r.staged = append(r.staged, req)
	return nil
}

// Flush hands every staged request to the kernel in one submission.
func (r *IOURingBackend) Flush() error {
	if len(r.staged) == 0 {
		return nil
	}
	if _, err := r.iour.SubmitRequests(r.staged, r.ch); err != nil {
		return fmt.Errorf("io_uring submit: %w", err)
	}
	r.submitted += len(r.staged)
	r.staged = r.staged[:0]
	return nil
}

// Harvest waits for at least atLeast completions and drains any others that
// are already available.
func (r *IOURingBackend) Harvest(ctx context.Context, atLeast int) ([]Completion, error) {
	atLeast = max(0, min(atLeast, r.submitted))
	out := make([]Completion, 0, max(atLeast, 1))

	for len(out) < atLeast {
		select {
		case res := <-r.ch:
			out = append(out, r.complete(res))
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
	for {
		select {
		case res := <-r.ch:
			out = append(out, r.complete(res))
		default:
			return out, nil
		}
	}
}

func (r *IOURingBackend) complete(res iouring.Result) Completion {
	r.submitted--
	tag, _ := res.GetRequestInfo().(ringTag) //nolint:errcheck // every request carries a ringTag
	c := Completion{Slot: tag.slot, Op: tag.op}
	if err := res.Err(); err != nil {
		c.Err = err
		return c
	}
	c.N, c.Err = res.ReturnInt()
	return c
}

// Close releases the ring. Callers must have harvested every submitted
// request; buffers still referenced by the kernel would otherwise be reused.
func (r *IOURingBackend) Close() error {
	if r == nil || r.iour == nil {
		return nil
	}
	return r.iour.Close()
}

// kernelSupportsIOURing checks if the kernel version is >= 5.6.
func kernelSupportsIOURing() bool {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return false
	}

	release := unix.ByteSliceToString(uname.Release[:])
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return false
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}

	minorStr := parts[1]
	if idx := strings.IndexFunc(minorStr, func(r rune) bool { return r < '0' || r > '9' }); idx > 0 {
		minorStr = minorStr[:idx]
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return false
	}

	return major > 5 || (major == 5 && minor >= 6)
}

// KernelSupportsIOURing is exported for testing.
func KernelSupportsIOURing() bool {
	return kernelSupportsIOURing()
}
