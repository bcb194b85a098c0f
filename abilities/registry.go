package abilities

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Ability names are namespaced: a namespace segment, a slash, and a verb-ish
// identifier, e.g. "content/create-post".
var abilityNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*/[a-z0-9][a-z0-9_-]*$`)

// IsValidName reports whether name is a well-formed namespaced ability name.
func IsValidName(name string) bool {
	return abilityNameRe.MatchString(name)
}

// Registry is a thread-safe lookup of abilities by name. It is the injected
// collaborator boundary between the host and the MCP adapter.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Ability
}

// NewRegistry builds an empty ability registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Ability)}
}

// Register adds an ability. Names must be namespaced ("ns/verb") and unique.
func (r *Registry) Register(a Ability) error {
	if a == nil {
		return fmt.Errorf("ability is required")
	}
	name := a.Name()
	if !IsValidName(name) {
		return fmt.Errorf("invalid ability name %q: want namespaced form ns/verb", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("ability %q already registered", name)
	}
	r.byName[name] = a
	return nil
}

// Unregister removes an ability by name, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	return true
}

// Get returns the ability registered under name, if any.
func (r *Registry) Get(name string) (Ability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the sorted set of registered ability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
