// Package arena provides the durable storage substrate: a directory of
// numbered regions holding ordered maps and append-only vectors. Each
// region is a length-prefixed record log replayed on open and compacted
// on checkpoint.
package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Arena owns one storage directory and hands out region handles.
type Arena struct {
	mu      sync.Mutex
	dir     string
	regions map[uint8]*Region
	closed  bool
}

// Open prepares the storage directory and returns an Arena over it.
func Open(dir string) (*Arena, error) {
	if dir == "" {
		return nil, fmt.Errorf("arena: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("arena: create directory: %w", err)
	}
	return &Arena{
		dir:     dir,
		regions: make(map[uint8]*Region),
	}, nil
}

// Dir returns the arena's storage directory.
func (a *Arena) Dir() string { return a.dir }

// Region returns the handle for the given region id, creating its backing
// file on first use. Repeated calls with the same id return the same
// handle.
func (a *Arena) Region(id uint8) (*Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("arena: closed")
	}
	if r, ok := a.regions[id]; ok {
		return r, nil
	}

	path := filepath.Join(a.dir, fmt.Sprintf("region_%d.log", id))
	r, err := openRegion(id, path)
	if err != nil {
		return nil, fmt.Errorf("arena: open region %d: %w", id, err)
	}
	a.regions[id] = r
	return r, nil
}

// Close releases every open region. The arena is unusable afterwards.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for id, r := range a.regions {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("arena: close region %d: %w", id, err)
		}
	}
	a.regions = nil
	return firstErr
}
