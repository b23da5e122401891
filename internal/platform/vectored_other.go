//go:build !linux

package platform

import "os"

// VectoredBackend falls back to one buffer per call where preadv/pwritev are
// not available.
type VectoredBackend struct {
	*SingleBackend
}

// NewVectored creates a vectored backend over already open files.
func NewVectored(src, dst *os.File) *VectoredBackend {
	return &VectoredBackend{SingleBackend: NewSingle(src, dst)}
}

func (b *VectoredBackend) Method() Method { return Vectored }
