package engine

import (
	"errors"

	"github.com/bamsammich/ringcp/internal/pool"
)

// Transient conditions. Both are recovered inside the batch reader and
// writer and never returned from Run.
var (
	ErrPoolExhausted = pool.ErrExhausted
	ErrInterrupted   = errors.New("interrupted")
)

// Fatal conditions. Run wraps them with offset and slot context; match with
// errors.Is.
var (
	ErrReadFailed   = errors.New("read failed")
	ErrWriteFailed  = errors.New("write failed")
	ErrWriteStalled = errors.New("write stalled")
	ErrShortInput   = errors.New("input ended before declared size")
)
