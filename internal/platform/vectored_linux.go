//go:build linux

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// iovMax mirrors the kernel's UIO_MAXIOV; passing more buffers to preadv or
// pwritev fails with EINVAL.
const iovMax = 1024

// VectoredBackend moves a whole window per preadv/pwritev call.
type VectoredBackend struct {
	srcFd int
	dstFd int
}

// NewVectored creates a vectored backend over already open files.
//
//nolint:gosec // G115: fd values are small non-negative integers
func NewVectored(src, dst *os.File) *VectoredBackend {
	return &VectoredBackend{srcFd: int(src.Fd()), dstFd: int(dst.Fd())}
}

func (b *VectoredBackend) Method() Method  { return Vectored }
func (b *VectoredBackend) MaxVectors() int { return iovMax }
func (b *VectoredBackend) Close() error    { return nil }

// ReadAt scatters into bufs with a single preadv.
func (b *VectoredBackend) ReadAt(bufs [][]byte, off int64) (int, error) {
	if len(bufs) == 0 {
		return 0, nil
	}
	n, err := unix.Preadv(b.srcFd, bufs, off)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WriteAt gathers from bufs with a single pwritev.
func (b *VectoredBackend) WriteAt(bufs [][]byte, off int64) (int, error) {
	if len(bufs) == 0 {
		return 0, nil
	}
	n, err := unix.Pwritev(b.dstFd, bufs, off)
	if err != nil {
		return 0, err
	}
	return n, nil
}
