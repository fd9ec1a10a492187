package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
)

// maxSuggestDistance bounds the edit distance for name suggestions.
const maxSuggestDistance = 3

// Registry manages registered plugins with thread-safe operations.
type Registry struct {
	plugins  map[string]Plugin
	disabled map[string]struct{}

	mu sync.RWMutex
}

// NewRegistry creates a Registry holding plugins.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{
		plugins:  make(map[string]Plugin, len(plugins)),
		disabled: make(map[string]struct{}),
	}
	for _, p := range plugins {
		r.plugins[p.Name()] = p
	}
	return r
}

// Register registers a plugin, replacing any plugin with the same name.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Disable hides plugins from Get without unregistering them.
func (r *Registry) Disable(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.disabled[n] = struct{}{}
	}
}

// Get retrieves an enabled plugin by name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, off := r.disabled[name]; off {
		return nil, false
	}
	p, ok := r.plugins[name]
	return p, ok
}

// List returns the sorted names of all enabled plugins.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.plugins))
	for n := range r.plugins {
		if _, off := r.disabled[n]; off {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a plugin from this registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[name]; !ok {
		return fmt.Errorf("plugin %s not registered", name)
	}

	delete(r.plugins, name)
	return nil
}

// Count returns the number of enabled plugins.
func (r *Registry) Count() int {
	return len(r.List())
}

// IsEmpty returns true if no plugins are enabled.
func (r *Registry) IsEmpty() bool {
	return r.Count() == 0
}

// Suggest returns the enabled plugin name closest to name, if one is
// within a small edit distance.
func (r *Registry) Suggest(name string) (string, bool) {
	best, bestDist := "", maxSuggestDistance+1
	for _, n := range r.List() {
		if d := levenshtein.ComputeDistance(name, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, best != ""
}
