//go:build !linux

package fsutil

import "os"

// preallocate reserves nothing: fallocate is Linux-only, and the first write
// past the end grows the file anyway.
func preallocate(*os.File, int64) error { return nil }
