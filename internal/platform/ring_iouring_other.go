//go:build !linux

package platform

import "os"

// NewIOURing always fails with ErrUnsupported on non-Linux platforms.
//
//nolint:ireturn // mirrors the Linux constructor
func NewIOURing(_, _ *os.File, _ int) (Ring, error) {
	return nil, ErrUnsupported
}

// KernelSupportsIOURing always returns false on non-Linux platforms.
func KernelSupportsIOURing() bool {
	return false
}
