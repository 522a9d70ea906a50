// Package ports assigns unique network ports to tools and plugins. The
// registry is in-memory only; plugin ports may differ between runs unless a
// manifest pins one.
package ports

import (
	"fmt"
	"sync"

	"aetherd/pkg/logging"
)

// Registry allocates non-conflicting ports. Explicit requests are advisory:
// on collision the registry silently grants a different port (scanning upward
// from the plugin base) instead of raising an error to the plugin author.
type Registry struct {
	mu    sync.Mutex
	base  int
	next  int
	inUse map[int]string // port -> tool id
}

// NewRegistry creates a registry whose implicit allocations start at base.
func NewRegistry(base int) *Registry {
	return &Registry{
		base:  base,
		next:  base,
		inUse: make(map[int]string),
	}
}

// Reserve claims a fixed port for a tool (used for the built-in table).
// It fails when the port is already held by a different tool.
func (r *Registry) Reserve(port int, toolID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.inUse[port]; taken && owner != toolID {
		return fmt.Errorf("port %d already reserved by %q", port, owner)
	}
	r.inUse[port] = toolID
	return nil
}

// Allocate grants a port to a tool. A non-zero requested port is honored when
// free; otherwise, and for requested == 0, the next free value from the base
// upward is granted and the monotonic counter advances past it.
func (r *Registry) Allocate(toolID string, requested int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requested > 0 {
		if _, taken := r.inUse[requested]; !taken {
			r.inUse[requested] = toolID
			return requested
		}
		// Requested ports are advisory: on collision, scan upward from the
		// base for the first free value instead of failing the plugin.
		granted := r.base
		for {
			if _, taken := r.inUse[granted]; !taken {
				break
			}
			granted++
		}
		logging.Warn("PortRegistry", "Requested port %d for %q is taken; granted %d instead", requested, toolID, granted)
		r.inUse[granted] = toolID
		return granted
	}

	granted := r.nextFreeLocked()
	r.inUse[granted] = toolID
	return granted
}

// nextFreeLocked scans upward from the counter for the first unused port and
// advances the counter past the granted value. Caller holds r.mu.
func (r *Registry) nextFreeLocked() int {
	candidate := r.next
	for {
		if _, taken := r.inUse[candidate]; !taken {
			r.next = candidate + 1
			return candidate
		}
		candidate++
	}
}

// Release frees every port held by the given tool id (plugin unload).
func (r *Registry) Release(toolID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for port, owner := range r.inUse {
		if owner == toolID {
			delete(r.inUse, port)
		}
	}
}

// InUse reports whether a port is currently assigned.
func (r *Registry) InUse(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.inUse[port]
	return taken
}

// Owner returns the tool id holding a port, if any.
func (r *Registry) Owner(port int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, taken := r.inUse[port]
	return owner, taken
}
