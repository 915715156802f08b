package storage

import (
	"sort"
	"sync"
)

// Registry is a ConnectionRegistry backed by a lock-guarded map.
type Registry[C any] struct {
	mu    sync.RWMutex
	conns map[string]C
}

var _ ConnectionRegistry[int] = (*Registry[int])(nil)

func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{conns: make(map[string]C)}
}

// Register binds chain to conn, replacing any earlier binding.
func (r *Registry[C]) Register(chain string, conn C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[chain] = conn
}

func (r *Registry[C]) Get(chain string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[chain]
	return conn, ok
}

// Chains returns the registered chain names in sorted order.
func (r *Registry[C]) Chains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chains := make([]string, 0, len(r.conns))
	for chain := range r.conns {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// Each calls fn for every registered connection.
func (r *Registry[C]) Each(fn func(chain string, conn C)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for chain, conn := range r.conns {
		fn(chain, conn)
	}
}
