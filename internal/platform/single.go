//go:build unix

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// SingleBackend moves one buffer per blocking pread/pwrite call. A window of
// slots degenerates to one slot at a time; this is the correctness baseline.
type SingleBackend struct {
	srcFd int
	dstFd int
}

// NewSingle creates a single-buffer backend over already open files.
//
//nolint:gosec // G115: fd values are small non-negative integers
func NewSingle(src, dst *os.File) *SingleBackend {
	return &SingleBackend{srcFd: int(src.Fd()), dstFd: int(dst.Fd())}
}

func (b *SingleBackend) Method() Method  { return Single }
func (b *SingleBackend) MaxVectors() int { return 1 }
func (b *SingleBackend) Close() error    { return nil }

// ReadAt reads into the first non-empty buffer only.
func (b *SingleBackend) ReadAt(bufs [][]byte, off int64) (int, error) {
	return pread(b.srcFd, firstNonEmpty(bufs), off)
}

// WriteAt writes from the first non-empty buffer only.
func (b *SingleBackend) WriteAt(bufs [][]byte, off int64) (int, error) {
	return pwrite(b.dstFd, firstNonEmpty(bufs), off)
}

func pread(fd int, buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Pread(fd, buf, off)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func pwrite(fd int, buf []byte, off int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Pwrite(fd, buf, off)
	if err != nil {
		return 0, err
	}
	return n, nil
}
