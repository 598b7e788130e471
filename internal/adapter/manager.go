package adapter

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/thunder-source/live-tables-backend/internal/logger"
	"github.com/thunder-source/live-tables-backend/internal/metrics"
)

// ResolveFunc looks up a stored connection and returns its backend type and
// decrypted configuration. Resolution (storage lookup, permission check,
// credential decryption) belongs to the caller's collaborators; the manager
// only consumes the result. A missing connection surfaces as
// ConnectionNotFound from the resolver.
type ResolveFunc func(ctx context.Context, connectionID string) (Type, ConnectionConfig, error)

// Manager owns the process-wide cache of connected adapters, one per
// connection id. Creation is single-flight so concurrent requests for the
// same connection share one connect attempt instead of racing.
type Manager struct {
	registry *Registry
	resolve  ResolveFunc

	mu      sync.RWMutex
	cache   map[string]Adapter
	flights singleflight.Group
}

// NewManager creates a Manager backed by the given registry and resolver.
func NewManager(registry *Registry, resolve ResolveFunc) *Manager {
	return &Manager{
		registry: registry,
		resolve:  resolve,
		cache:    make(map[string]Adapter),
	}
}

// Get returns the cached adapter for a connection id, creating and
// connecting one if absent.
func (m *Manager) Get(ctx context.Context, connectionID string) (Adapter, error) {
	m.mu.RLock()
	a, ok := m.cache[connectionID]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	v, err, _ := m.flights.Do(connectionID, func() (any, error) {
		// Re-check under the flight; a concurrent Invalidate may have run.
		m.mu.RLock()
		cached, ok := m.cache[connectionID]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		t, cfg, err := m.resolve(ctx, connectionID)
		if err != nil {
			return nil, err
		}
		created, err := m.registry.Create(t)
		if err != nil {
			return nil, err
		}
		if err := created.Connect(ctx, cfg); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[connectionID] = created
		size := len(m.cache)
		m.mu.Unlock()
		metrics.AdapterCacheSize.Set(float64(size))

		logger.Info("connected external adapter", "connection", connectionID, "type", string(t))
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Adapter), nil
}

// Invalidate disconnects and evicts the cached adapter for a connection id.
// Called when the connection's credentials change or the connection is
// deleted. Safe to call for ids that are not cached.
func (m *Manager) Invalidate(ctx context.Context, connectionID string) {
	m.mu.Lock()
	a, ok := m.cache[connectionID]
	delete(m.cache, connectionID)
	size := len(m.cache)
	m.mu.Unlock()

	if !ok {
		return
	}
	metrics.AdapterCacheSize.Set(float64(size))

	if err := a.Disconnect(ctx); err != nil {
		logger.Warn("failed to disconnect evicted adapter", "connection", connectionID, "error", err)
	}
}

// Close disconnects and evicts every cached adapter.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	adapters := m.cache
	m.cache = make(map[string]Adapter)
	m.mu.Unlock()
	metrics.AdapterCacheSize.Set(0)

	for id, a := range adapters {
		if err := a.Disconnect(ctx); err != nil {
			logger.Warn("failed to disconnect adapter", "connection", id, "error", err)
		}
	}
}
