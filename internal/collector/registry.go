package collector

import (
	"fmt"
	"slices"
	"sync"

	"github.com/newthinker/momentum/internal/core"
)

// Registry manages history providers by name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]HistoryProvider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]HistoryProvider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p HistoryProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (HistoryProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Lookup retrieves a provider or fails with ErrUnknownCollector
func (r *Registry) Lookup(name string) (HistoryProvider, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrUnknownCollector, fmt.Errorf("%q (available: %v)", name, r.Names()))
	}
	return p, nil
}

// Names returns registered provider names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
