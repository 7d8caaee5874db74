package gatherer

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh collector instance.
type Factory func() Gatherer

// Resolver looks a collector id up and returns its factory. The
// configuration resolver depends only on this function type; how collectors
// are located is the embedder's business.
type Resolver func(id string) (Factory, error)

// Registry is the default Resolver implementation: a concurrent map from
// collector id to factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under id. Registering a duplicate id is an error.
func (r *Registry) Register(id string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("gatherer: nil factory for %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("gatherer: %q already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister is Register for package-init wiring.
func (r *Registry) MustRegister(id string, factory Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the factory registered under id.
func (r *Registry) Resolve(id string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("gatherer: unknown collector %q", id)
	}
	return factory, nil
}

// Resolver adapts the registry to the Resolver function type.
func (r *Registry) Resolver() Resolver {
	return r.Resolve
}

// IDs returns registered collector ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
