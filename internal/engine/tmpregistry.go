package engine

import (
	"log/slog"
	"sync"

	"github.com/bamsammich/treesync/internal/transport"
)

// tmpRegistry tracks temporary files a run has created on the destination
// and not yet renamed into place or removed.
type tmpRegistry struct {
	ep    transport.WriteEndpoint
	paths map[string]struct{}
	mu    sync.Mutex
}

func newTmpRegistry(ep transport.WriteEndpoint) *tmpRegistry {
	return &tmpRegistry{ep: ep, paths: make(map[string]struct{})}
}

func (r *tmpRegistry) register(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[relPath] = struct{}{}
}

func (r *tmpRegistry) deregister(relPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, relPath)
}

func (r *tmpRegistry) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// cleanup removes every registered temporary file.
func (r *tmpRegistry) cleanup() {
	r.mu.Lock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = make(map[string]struct{})
	r.mu.Unlock()

	for _, p := range paths {
		if err := r.ep.Remove(p); err != nil {
			slog.Warn("could not remove temporary file", "path", p, "error", err)
		}
	}
}
