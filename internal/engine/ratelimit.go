package engine

import (
	"context"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps aggregate throughput to
// bytesPerSec. The burst is set to 1 MB to allow whole windows through
// without unnecessary blocking on small reads.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// throttle waits until limiter admits n bytes. Requests larger than the
// burst are admitted in burst-sized pieces, since WaitN rejects them whole.
// A nil limiter admits everything.
func throttle(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil || n <= 0 || limiter.Limit() == rate.Inf {
		return nil
	}
	burst := limiter.Burst()
	if burst <= 0 {
		return nil
	}
	for n > 0 {
		chunk := min(n, burst)
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
