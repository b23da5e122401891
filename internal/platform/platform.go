// Package platform provides the I/O backends the copy engine drives: blocking
// positional backends (single-buffer and vectored) and submission/completion
// ring backends (io_uring and a portable emulation).
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Method identifies a backend implementation.
type Method int

const (
	Single   Method = iota // one pread/pwrite per slot
	Vectored               // preadv/pwritev over a window of slots
	IOURing                // Linux io_uring
	Emulated               // in-process ring, portable
)

func (m Method) String() string {
	switch m {
	case Single:
		return "sync"
	case Vectored:
		return "vectored"
	case IOURing:
		return "ring"
	case Emulated:
		return "emulated"
	default:
		return "unknown"
	}
}

// IsRing reports whether the method is driven through the Ring interface.
func (m Method) IsRing() bool {
	return m == IOURing || m == Emulated
}

// ParseMethod maps a backend name to a Method. "synchronous" and "uring" are
// accepted as aliases.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sync", "synchronous":
		return Single, nil
	case "vectored", "vector":
		return Vectored, nil
	case "ring", "uring", "io_uring":
		return IOURing, nil
	case "emulated":
		return Emulated, nil
	default:
		return 0, fmt.Errorf("unknown backend %q (use sync, vectored, ring or emulated)", s)
	}
}

var (
	// ErrQueueFull is returned by a ring submit when the submission queue is
	// at depth. The caller must harvest at least one completion first.
	ErrQueueFull = errors.New("submission queue full")

	// ErrUnsupported is returned when a backend cannot run on this system.
	ErrUnsupported = errors.New("backend not supported on this system")
)

// IsInterrupted reports whether err is a transient condition that should be
// retried with the identical request.
func IsInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

// Sync is a blocking backend. Each call transfers into or out of bufs in
// order, starting at off, and may return fewer bytes than requested.
type Sync interface {
	Method() Method
	// MaxVectors is the most buffers a single call accepts.
	MaxVectors() int
	ReadAt(bufs [][]byte, off int64) (int, error)
	WriteAt(bufs [][]byte, off int64) (int, error)
	Close() error
}

// Op is the kind of operation a completion belongs to.
type Op uint8

const (
	OpRead Op = iota + 1
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Completion is one harvested result, tagged with the slot it was submitted
// for. N is only meaningful when Err is nil.
type Completion struct {
	Slot int
	Op   Op
	N    int
	Err  error
}

// Ring is an asynchronous submission/completion backend. Submissions are
// staged until Flush; completions may arrive in any order.
type Ring interface {
	Method() Method
	// Depth is the most operations that may be in flight at once.
	Depth() int
	// InFlight counts staged plus submitted operations not yet harvested.
	InFlight() int
	SubmitRead(slot int, buf []byte, off int64) error
	SubmitWrite(slot int, buf []byte, off int64) error
	Flush() error
	// Harvest blocks until at least atLeast completions are available, then
	// returns every completion that is ready.
	Harvest(ctx context.Context, atLeast int) ([]Completion, error)
	Close() error
}

// firstNonEmpty returns the first buffer with room, for backends that move
// one buffer per call.
func firstNonEmpty(bufs [][]byte) []byte {
	for _, b := range bufs {
		if len(b) > 0 {
			return b
		}
	}
	return nil
}
