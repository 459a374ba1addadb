// Package skills provides named activity generators that simulate a
// persona exercising a specific tool competency. Skills register
// factories at startup and are looked up by name; there is no dynamic
// code loading.
package skills

import (
	"math/rand"
	"sort"
	"sync"
)

// Skill generates a believable command sequence for one sitting.
type Skill interface {
	GenerateActivity() []string
}

// Factory builds a skill bound to a persona identity.
type Factory func(username, homeDir string, rng *rand.Rand) Skill

// Registry maps skill names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New instantiates the named skill for a persona.
func (r *Registry) New(name, username, homeDir string, rng *rand.Rand) (Skill, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(username, homeDir, rng), true
}

// Names lists registered skill names in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry with the built-in skills registered.
func Default() *Registry {
	r := NewRegistry()
	r.Register("git", NewGit)
	r.Register("docker", NewDocker)
	return r
}
