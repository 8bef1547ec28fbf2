package hosting

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a backend instance from its settings.
type Factory func(name string, settings map[string]string) (Backend, error)

// Registry maps backend type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// RegisterFactory registers a backend factory for a given type.
func (r *Registry) RegisterFactory(typeName string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = factory
}

// Has reports whether a factory is registered for typeName.
func (r *Registry) Has(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeName]
	return ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create builds a backend of the given type.
func (r *Registry) Create(typeName, name string, settings map[string]string) (Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[typeName]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend type: %s", typeName)
	}

	b, err := factory(name, settings)
	if err != nil {
		return nil, fmt.Errorf("creating backend %s: %w", name, err)
	}
	return b, nil
}
