package fsutil

import (
	"os"
	"sync"
)

// registry tracks temporary destinations that have not been committed, so a
// signal handler can remove them.
var registry = &tempRegistry{}

type tempRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func (r *tempRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tempRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *tempRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// CleanupTemps removes every temporary destination still registered.
func CleanupTemps() {
	registry.mu.Lock()
	paths := make([]string, 0, len(registry.paths))
	for p := range registry.paths {
		paths = append(paths, p)
	}
	registry.paths = nil
	registry.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
}
