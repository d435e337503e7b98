package provider

import (
	"fmt"
	"sync"
)

// Factory builds a Provider from vendor configuration (API keys, base URLs).
type Factory func(config map[string]string) (Provider, error)

// Registry is a thread-safe name -> Provider lookup, grounded on the
// teacher's internal/llm/provider/registry.go.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
	}
}

// RegisterFactory registers how to build a named provider.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build instantiates (and caches) the named provider from config.
func (r *Registry) Build(name string, config map[string]string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[name]; ok {
		return p, nil
	}

	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("provider: no factory registered for %q", name)
	}

	p, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("provider: build %q: %w", name, err)
	}
	r.instances[name] = p
	return p, nil
}

// Get returns a previously built provider instance by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.instances[name]
	return p, ok
}

// Register installs an already-constructed provider instance directly,
// bypassing the factory/config path. Used by tests and by vendors whose
// client construction needs more than string config (e.g. the Bedrock SDK's
// aws.Config).
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = p
}

// Names lists every provider name with a built instance.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for n := range r.instances {
		names = append(names, n)
	}
	return names
}
