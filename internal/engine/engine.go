package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/bamsammich/ringcp/internal/event"
	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/stats"
)

const (
	DefaultSlotCapacity = 8192
	DefaultPoolSize     = 64
	DefaultMaxStalls    = 16
	DefaultMaxRetries   = 64
)

// Config describes how a copy is carried out. Zero fields take defaults.
type Config struct {
	SlotCapacity int
	PoolSize     int
	Backend      platform.Method
	QueueDepth   int // ring backends only; defaults to PoolSize
	MaxStalls    int // consecutive zero-byte writes tolerated
	MaxRetries   int // interrupted calls re-issued per operation

	Limiter *rate.Limiter      // optional bandwidth cap applied to reads
	Events  chan<- event.Event // optional, never blocks the engine
	Stats   *stats.Collector   // optional
	Logger  *slog.Logger       // optional, debug records only
}

func (c Config) withDefaults() Config {
	if c.SlotCapacity == 0 {
		c.SlotCapacity = DefaultSlotCapacity
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = c.PoolSize
	}
	if c.MaxStalls == 0 {
		c.MaxStalls = DefaultMaxStalls
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Stats == nil {
		c.Stats = stats.NewCollector()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.SlotCapacity <= 0:
		return fmt.Errorf("slot capacity must be positive, got %d", c.SlotCapacity)
	case c.PoolSize <= 0:
		return fmt.Errorf("pool size must be positive, got %d", c.PoolSize)
	case c.QueueDepth <= 0:
		return fmt.Errorf("queue depth must be positive, got %d", c.QueueDepth)
	case c.MaxStalls < 0:
		return fmt.Errorf("max stalls must not be negative, got %d", c.MaxStalls)
	case c.MaxRetries < 0:
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// Result is the outcome of Copy.
type Result struct {
	BytesCopied int64
	Method      platform.Method // backend actually used
	Stats       stats.Snapshot
	Err         error
}

// Run drives t until every declared byte has been written or a fatal error
// occurs, and returns the number of bytes written. The task's pool is torn
// down before Run returns; backend handles are left to the caller.
func Run(ctx context.Context, t *Task) (int64, error) {
	defer t.pool.Close()

	t.state = Running
	event.Emit(t.cfg.Events, event.Event{Type: event.CopyStarted, Size: t.size})
	if t.remaining == 0 {
		t.markEndOfInput()
	}

	var err error
	if t.ring != nil {
		err = t.runPipelined(ctx)
	} else {
		err = t.runBatched(ctx)
	}
	if err == nil && t.copied != t.size {
		err = fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteFailed, t.copied, t.size)
	}

	if err != nil {
		t.state = Failed
		t.log.Debug("copy failed", "copied", t.copied, "size", t.size, "error", err)
		event.Emit(t.cfg.Events, event.Event{
			Type:      event.CopyFailed,
			Size:      t.size,
			Total:     t.copied,
			Remaining: t.remaining,
			Error:     err,
		})
		return t.copied, err
	}

	t.state = Done
	event.Emit(t.cfg.Events, event.Event{Type: event.CopyCompleted, Size: t.size, Total: t.copied})
	return t.copied, nil
}

// Copy copies size bytes from src to dst using the backend named in cfg. An
// io_uring backend that the kernel cannot provide falls back to vectored I/O;
// Result.Method reports what was used.
func Copy(ctx context.Context, src, dst *os.File, size int64, cfg Config) Result {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Result{Method: cfg.Backend, Err: err}
	}

	task, closer, method, err := newTaskFor(src, dst, size, cfg)
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		return Result{Method: method, Stats: cfg.Stats.Snapshot(), Err: err}
	}

	n, err := Run(ctx, task)
	return Result{
		BytesCopied: n,
		Method:      method,
		Stats:       cfg.Stats.Snapshot(),
		Err:         err,
	}
}

func newTaskFor(src, dst *os.File, size int64, cfg Config) (*Task, io.Closer, platform.Method, error) {
	switch cfg.Backend {
	case platform.Single:
		b := platform.NewSingle(src, dst)
		t, err := NewTask(b, size, cfg)
		return t, b, platform.Single, err

	case platform.Vectored:
		b := platform.NewVectored(src, dst)
		t, err := NewTask(b, size, cfg)
		return t, b, platform.Vectored, err

	case platform.IOURing:
		r, err := platform.NewIOURing(src, dst, cfg.QueueDepth)
		if errors.Is(err, platform.ErrUnsupported) {
			cfg.Logger.Debug("io_uring unavailable, using vectored I/O", "error", err)
			b := platform.NewVectored(src, dst)
			t, err := NewTask(b, size, cfg)
			return t, b, platform.Vectored, err
		}
		if err != nil {
			return nil, nil, platform.IOURing, err
		}
		t, err := NewRingTask(r, size, cfg)
		return t, r, platform.IOURing, err

	case platform.Emulated:
		r, err := platform.NewEmulatedRing(src, dst, cfg.QueueDepth)
		if err != nil {
			return nil, nil, platform.Emulated, err
		}
		t, err := NewRingTask(r, size, cfg)
		return t, r, platform.Emulated, err

	default:
		return nil, nil, cfg.Backend, fmt.Errorf("unknown backend %v", cfg.Backend)
	}
}
