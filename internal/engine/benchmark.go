package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/bamsammich/ringcp/internal/platform"
	"github.com/bamsammich/ringcp/internal/stats"
)

const benchSize = 64 * 1024 * 1024 // 64 MB

// BenchmarkMethods are the backends RunBenchmark compares, in order.
var BenchmarkMethods = []platform.Method{
	platform.Single,
	platform.Vectored,
	platform.IOURing,
	platform.Emulated,
}

// BackendResult is the measurement for one backend.
type BackendResult struct {
	Method      platform.Method
	Bytes       int64
	Elapsed     time.Duration
	BytesPerSec float64
	ShortReads  int64
	ShortWrites int64
	Err         error
}

// BenchmarkResult holds throughput measurements for every backend plus the
// host facts the suggestion is based on.
type BenchmarkResult struct {
	Backends          []BackendResult
	CPU               string
	L2Cache           int // bytes, 0 if unknown
	SuggestedMethod   platform.Method
	SuggestedPoolSize int
}

// RunBenchmark copies up to 64 MB of srcPath into a temp file in dstDir once
// per backend and reports throughput. A backend the system cannot provide is
// recorded with an error wrapping platform.ErrUnsupported.
func RunBenchmark(ctx context.Context, srcPath, dstDir string, cfg Config) (BenchmarkResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return BenchmarkResult{}, err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return BenchmarkResult{}, err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return BenchmarkResult{}, fmt.Errorf("%s: not a readable non-empty file", srcPath)
	}
	size := min(info.Size(), benchSize)

	result := BenchmarkResult{CPU: cpuid.CPU.BrandName}
	if cpuid.CPU.Cache.L2 > 0 {
		result.L2Cache = cpuid.CPU.Cache.L2
	}

	var best float64
	for _, m := range BenchmarkMethods {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		r := benchBackend(ctx, srcPath, dstDir, size, m, cfg)
		result.Backends = append(result.Backends, r)
		if r.Err == nil && r.BytesPerSec > best {
			best = r.BytesPerSec
			result.SuggestedMethod = m
		}
	}
	if best == 0 {
		return result, errors.New("no backend completed the benchmark")
	}

	result.SuggestedPoolSize = suggestPoolSize(result.L2Cache, cfg.SlotCapacity)
	return result, nil
}

func benchBackend(
	ctx context.Context,
	srcPath, dstDir string,
	size int64,
	m platform.Method,
	cfg Config,
) BackendResult {
	r := BackendResult{Method: m}

	src, err := os.Open(srcPath)
	if err != nil {
		r.Err = err
		return r
	}
	defer src.Close()

	dst, err := os.CreateTemp(dstDir, ".ringcp-bench-*")
	if err != nil {
		r.Err = err
		return r
	}
	defer os.Remove(dst.Name())
	defer dst.Close()

	cfg.Backend = m
	cfg.Stats = stats.NewCollector()
	cfg.Events = nil

	start := time.Now()
	res := Copy(ctx, src, dst, size, cfg)
	if res.Err == nil {
		res.Err = dst.Sync()
	}
	r.Elapsed = max(time.Since(start), time.Microsecond)

	switch {
	case res.Err != nil:
		r.Err = res.Err
	case res.Method != m:
		r.Err = fmt.Errorf("%s: %w", m, platform.ErrUnsupported)
	default:
		r.Bytes = res.BytesCopied
		r.BytesPerSec = float64(res.BytesCopied) / r.Elapsed.Seconds()
		r.ShortReads = res.Stats.ShortReads
		r.ShortWrites = res.Stats.ShortWrites
	}
	return r
}

// suggestPoolSize sizes the pool so the whole arena fits in L2, within
// [16, 256] slots. Without cache information the default stands.
func suggestPoolSize(l2, slotCapacity int) int {
	if l2 <= 0 || slotCapacity <= 0 {
		return DefaultPoolSize
	}
	return min(max(l2/slotCapacity, 16), 256)
}

// FormatBenchmark formats a BenchmarkResult for display.
func FormatBenchmark(r BenchmarkResult) string {
	var b strings.Builder
	if r.CPU != "" {
		fmt.Fprintf(&b, "cpu: %s", r.CPU)
		if r.L2Cache > 0 {
			fmt.Fprintf(&b, " (L2 %s)", stats.FormatBytes(int64(r.L2Cache)))
		}
		b.WriteByte('\n')
	}
	for _, br := range r.Backends {
		if br.Err != nil {
			fmt.Fprintf(&b, "%-9s  unavailable: %v\n", br.Method, br.Err)
			continue
		}
		fmt.Fprintf(&b, "%-9s  %s/s  short reads %d  short writes %d\n",
			br.Method, formatBytes(br.BytesPerSec), br.ShortReads, br.ShortWrites)
	}
	fmt.Fprintf(&b, "suggested: --backend %s --pool-size %d", r.SuggestedMethod, r.SuggestedPoolSize)
	return b.String()
}

func formatBytes(b float64) string {
	switch {
	case b >= 1e9:
		return fmt.Sprintf("%.1f GB", b/1e9)
	case b >= 1e6:
		return fmt.Sprintf("%.0f MB", b/1e6)
	case b >= 1e3:
		return fmt.Sprintf("%.0f KB", b/1e3)
	default:
		return fmt.Sprintf("%.0f B", b)
	}
}
