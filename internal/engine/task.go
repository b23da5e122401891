package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/pool"
)

// State is the lifecycle position of a Task.
type State int

const (
	Running State = iota
	Draining
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is one copy invocation. It owns its slot pool exclusively; the pool
// is freed when Run returns, whatever the outcome. Handles belong to the
// caller.
type Task struct {
	cfg  Config
	log  *slog.Logger
	sync platform.Sync
	ring platform.Ring
	pool *pool.Pool

	size       int64
	remaining  int64
	copied     int64
	endOfInput bool
	state      State
}

// NewTask prepares a copy of size bytes through a blocking backend.
func NewTask(b platform.Sync, size int64, cfg Config) (*Task, error) {
	if b == nil {
		return nil, errors.New("nil backend")
	}
	t, err := newTask(size, cfg)
	if err != nil {
		return nil, err
	}
	t.sync = b
	return t, nil
}

// NewRingTask prepares a copy of size bytes through a ring backend. Reads
// for new slots are overlapped with writes of earlier ones.
func NewRingTask(r platform.Ring, size int64, cfg Config) (*Task, error) {
	if r == nil {
		return nil, errors.New("nil ring")
	}
	t, err := newTask(size, cfg)
	if err != nil {
		return nil, err
	}
	t.ring = r
	return t, nil
}

func newTask(size int64, cfg Config) (*Task, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative size %d", size)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.New(cfg.PoolSize, cfg.SlotCapacity)
	if err != nil {
		return nil, err
	}

	cfg.Stats.SetTotal(size)
	return &Task{
		cfg:       cfg,
		log:       cfg.Logger,
		pool:      p,
		size:      size,
		remaining: size,
	}, nil
}

// Remaining is the number of declared bytes not yet read.
func (t *Task) Remaining() int64 { return t.remaining }

// Copied is the number of bytes written to the destination so far.
func (t *Task) Copied() int64 { return t.copied }

// EndOfInput reports whether no further reads will be issued.
func (t *Task) EndOfInput() bool { return t.endOfInput }

// State returns where the task is in its lifecycle.
func (t *Task) State() State { return t.state }

// consumeRead accounts n freshly read bytes against remaining.
func (t *Task) consumeRead(n int) {
	t.remaining -= int64(n)
	t.cfg.Stats.AddBytesRead(int64(n))
	if t.remaining == 0 {
		t.markEndOfInput()
	}
}

func (t *Task) markEndOfInput() {
	if t.endOfInput {
		return
	}
	t.endOfInput = true
	t.state = Draining
	event.Emit(t.cfg.Events, event.Event{
		Type:      event.EndOfInput,
		Offset:    t.size - t.remaining,
		Remaining: t.remaining,
	})
}

// shortInput marks a premature end of input: a read returned nothing while
// declared bytes were still outstanding.
func (t *Task) shortInput(off int64) error {
	t.markEndOfInput()
	return fmt.Errorf("%w: got %d of %d bytes, nothing at offset %d",
		ErrShortInput, t.size-t.remaining, t.size, off)
}
