package agent

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/relay/pkg/models"
)

// Registry maps agent tags to adapters. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.AgentType]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.AgentType]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns the adapter for tag, or nil and false if absent.
func (r *Registry) Get(tag models.AgentType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[tag]
	return a, ok
}

// Names returns the registered tags sorted alphabetically.
func (r *Registry) Names() []models.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]models.AgentType, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// List returns the registered adapters ordered by tag.
func (r *Registry) List() []Adapter {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		if a, ok := r.adapters[name]; ok {
			out = append(out, a)
		}
	}
	return out
}
