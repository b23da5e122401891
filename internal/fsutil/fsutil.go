// Package fsutil prepares the files a copy runs between: it opens and sizes
// the source and stages the destination in a temp file that is renamed into
// place only when the copy succeeds.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	ErrNotRegular = errors.New("not a regular file")
	ErrSameFile   = errors.New("source and destination are the same file")
)

// OpenSource opens path for reading and returns its size. Only regular files
// are accepted.
func OpenSource(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("source: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("source %s: %w", path, ErrNotRegular)
	}
	return f, info.Size(), nil
}

// ResolveDestination returns the file path to write. A destination that is an
// existing directory receives the source's base name.
func ResolveDestination(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("source: %w", err)
	}

	info, err := os.Stat(dst)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return dst, nil
	case err != nil:
		return "", fmt.Errorf("destination: %w", err)
	case info.IsDir():
		dst = filepath.Join(dst, filepath.Base(src))
		info, err = os.Stat(dst)
		if errors.Is(err, os.ErrNotExist) {
			return dst, nil
		}
		if err != nil {
			return "", fmt.Errorf("destination: %w", err)
		}
	}

	if os.SameFile(srcInfo, info) {
		return "", fmt.Errorf("%s: %w", dst, ErrSameFile)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("destination %s: %w", dst, ErrNotRegular)
	}
	return dst, nil
}

// Target is a destination being written through a temp file beside it.
type Target struct {
	f       *os.File
	path    string
	tmpPath string
	done    bool
}

// CreateTarget creates an empty temp file next to path, reserves size bytes
// for it and registers it for cleanup. Running out of space while reserving
// is reported here rather than mid-copy. The caller writes through File and
// then calls Commit or Abort.
func CreateTarget(path string, size int64, perm os.FileMode) (*Target, error) {
	dir := filepath.Dir(path)
	tmpName := fmt.Sprintf(".%s.%s.ringcp-tmp", filepath.Base(path), uuid.New().String()[:8])
	tmpPath := filepath.Join(dir, tmpName)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm.Perm())
	if err != nil {
		return nil, fmt.Errorf("create temp %s: %w", tmpPath, err)
	}
	registry.add(tmpPath)
	if err := preallocate(f, size); err != nil {
		f.Close()
		os.Remove(tmpPath)
		registry.remove(tmpPath)
		return nil, fmt.Errorf("reserve %d bytes for %s: %w", size, path, err)
	}

	return &Target{f: f, path: path, tmpPath: tmpPath}, nil
}

// File is the open temp file.
func (t *Target) File() *os.File { return t.f }

// Path is the final destination.
func (t *Target) Path() string { return t.path }

// TempPath is where the data lives until Commit.
func (t *Target) TempPath() string { return t.tmpPath }

// Commit flushes the temp file to stable storage and renames it over the
// destination.
func (t *Target) Commit() error {
	if t.done {
		return errors.New("target already finished")
	}
	t.done = true
	defer registry.remove(t.tmpPath)

	if err := t.f.Sync(); err != nil {
		t.f.Close()
		os.Remove(t.tmpPath)
		return fmt.Errorf("sync %s: %w", t.tmpPath, err)
	}
	if err := t.f.Close(); err != nil {
		os.Remove(t.tmpPath)
		return fmt.Errorf("close %s: %w", t.tmpPath, err)
	}
	if err := os.Rename(t.tmpPath, t.path); err != nil {
		os.Remove(t.tmpPath)
		return fmt.Errorf("rename %s -> %s: %w", t.tmpPath, t.path, err)
	}
	return nil
}

// Abort discards the temp file. Calling it after Commit is a no-op.
func (t *Target) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	defer registry.remove(t.tmpPath)

	closeErr := t.f.Close()
	if err := os.Remove(t.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", t.tmpPath, err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return closeErr
	}
	return nil
}
