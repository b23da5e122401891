package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks copy statistics using lock-free atomic counters. The
// engine writes from its control goroutine while a presenter reads.
type Collector struct {
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	bytesTotal   atomic.Int64
	reads        atomic.Int64
	writes       atomic.Int64
	shortReads   atomic.Int64
	shortWrites  atomic.Int64
	retries      atomic.Int64
	stalls       atomic.Int64
	batches      atomic.Int64
	maxInFlight  atomic.Int64
	startTime    time.Time

	// Ring buffer, written only by the presenter's Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes written delta per second
	ringIdx    int
	ringCount  int // how many samples have been written (capped at ringSize)
	lastBytes  int64
}

// ReadTicker is the read side of a Collector, as seen by presenters that
// also drive the throughput ring.
type ReadTicker interface {
	Snapshot() Snapshot
	Tick()
	RollingSpeed(seconds int) float64
	SparklineData(n int) []float64
	ETA() time.Duration
}

var _ ReadTicker = (*Collector)(nil)

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotal records the declared size of the copy.
func (c *Collector) SetTotal(bytes int64) { c.bytesTotal.Store(bytes) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BytesRead    int64
	BytesWritten int64
	BytesTotal   int64
	Reads        int64
	Writes       int64
	ShortReads   int64
	ShortWrites  int64
	Retries      int64
	Stalls       int64
	Batches      int64
	MaxInFlight  int64
	Elapsed      time.Duration
}

func (c *Collector) AddBytesRead(n int64)    { c.bytesRead.Add(n) }
func (c *Collector) AddBytesWritten(n int64) { c.bytesWritten.Add(n) }
func (c *Collector) AddReads(n int64)        { c.reads.Add(n) }
func (c *Collector) AddWrites(n int64)       { c.writes.Add(n) }
func (c *Collector) AddShortReads(n int64)   { c.shortReads.Add(n) }
func (c *Collector) AddShortWrites(n int64)  { c.shortWrites.Add(n) }
func (c *Collector) AddRetries(n int64)      { c.retries.Add(n) }
func (c *Collector) AddStalls(n int64)       { c.stalls.Add(n) }
func (c *Collector) AddBatches(n int64)      { c.batches.Add(n) }

// ObserveInFlight raises the in-flight high-water mark to n if larger.
func (c *Collector) ObserveInFlight(n int64) {
	for {
		cur := c.maxInFlight.Load()
		if n <= cur || c.maxInFlight.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BytesRead:    c.bytesRead.Load(),
		BytesWritten: c.bytesWritten.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		Reads:        c.reads.Load(),
		Writes:       c.writes.Load(),
		ShortReads:   c.shortReads.Load(),
		ShortWrites:  c.shortWrites.Load(),
		Retries:      c.retries.Load(),
		Stalls:       c.stalls.Load(),
		Batches:      c.batches.Load(),
		MaxInFlight:  c.maxInFlight.Load(),
		Elapsed:      c.Elapsed(),
	}
}

// Tick snapshots the written-bytes delta into the ring buffer. Called 1/sec
// by the presenter.
func (c *Collector) Tick() {
	current := c.bytesWritten.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns up to n per-second throughput samples, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	out := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		out[i] = float64(c.throughput[idx])
	}
	return out
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesWritten.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// AverageSpeed is bytes written per second over the whole run.
func (s Snapshot) AverageSpeed() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesWritten) / s.Elapsed.Seconds()
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"read=%d written=%d reads=%d writes=%d short_reads=%d short_writes=%d retries=%d batches=%d",
		s.BytesRead, s.BytesWritten, s.Reads, s.Writes,
		s.ShortReads, s.ShortWrites, s.Retries, s.Batches,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
