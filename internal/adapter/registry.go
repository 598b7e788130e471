package adapter

import (
	"sync"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
)

// Factory constructs a disconnected adapter instance.
type Factory func() Adapter

// Registry maps backend types to adapter factories. It is populated once at
// process start and safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Type]Factory)}
}

// Register installs a factory for a backend type, replacing any previous
// registration.
func (r *Registry) Register(t Type, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Create builds a new, unconnected adapter for the given type.
func (r *Registry) Create(t Type) (Adapter, error) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, dalerrors.UnknownAdapterType(string(t))
	}
	return f(), nil
}

// Types lists the registered backend types.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}
