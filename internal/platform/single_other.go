//go:build !unix

package platform

import (
	"errors"
	"io"
	"os"
)

// SingleBackend moves one buffer per blocking ReadAt/WriteAt call.
type SingleBackend struct {
	src *os.File
	dst *os.File
}

// NewSingle creates a single-buffer backend over already open files.
func NewSingle(src, dst *os.File) *SingleBackend {
	return &SingleBackend{src: src, dst: dst}
}

func (b *SingleBackend) Method() Method  { return Single }
func (b *SingleBackend) MaxVectors() int { return 1 }
func (b *SingleBackend) Close() error    { return nil }

// ReadAt reads into the first non-empty buffer. os.File.ReadAt loops until
// the buffer is full, so a short count here means end of file.
func (b *SingleBackend) ReadAt(bufs [][]byte, off int64) (int, error) {
	buf := firstNonEmpty(bufs)
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := b.src.ReadAt(buf, off)
	if n > 0 {
		return n, nil
	}
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

// WriteAt writes from the first non-empty buffer.
func (b *SingleBackend) WriteAt(bufs [][]byte, off int64) (int, error) {
	buf := firstNonEmpty(bufs)
	if len(buf) == 0 {
		return 0, nil
	}
	return b.dst.WriteAt(buf, off)
}
