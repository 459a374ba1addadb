// Package persona models the synthetic identities whose activity the
// engine simulates. Personas are loaded once at process start and are
// never mutated by the core; an external evolution process owns them.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"mirage/internal/scene"
)

// Persona is a simulated user or service identity with its own
// schedule and behavior catalog.
type Persona struct {
	Name        string        `json:"-"`
	WorkHours   [2]int        `json:"work_hours"`
	Probability float64       `json:"probability"`
	HomeDir     string        `json:"home_dir"`
	Role        string        `json:"role,omitempty"`
	Scenes      []scene.Scene `json:"scenes,omitempty"`
	Skills      []string      `json:"skills,omitempty"`
}

// Set is the loaded persona collection. Iteration order is stable
// (sorted by name) so cycles are reproducible under a fixed seed.
type Set struct {
	byName map[string]Persona
	names  []string
}

// Load reads the persona spec file. A missing or malformed file yields
// an empty set and an error for the caller to log; the engine proceeds
// with whatever loaded.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewSet(nil), fmt.Errorf("read persona spec: %w", err)
	}

	var raw map[string]Persona
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewSet(nil), fmt.Errorf("parse persona spec %s: %w", path, err)
	}
	return NewSet(raw), nil
}

// NewSet builds a Set from a name->persona map, filling in the Name
// field and defaulting blanks the way the original spec files allow.
func NewSet(raw map[string]Persona) *Set {
	s := &Set{byName: make(map[string]Persona, len(raw))}
	for name, p := range raw {
		p.Name = name
		if p.HomeDir == "" {
			p.HomeDir = "/home/" + name
		}
		if p.Probability == 0 {
			p.Probability = 0.5
		}
		if p.WorkHours == [2]int{} {
			p.WorkHours = [2]int{9, 17}
		}
		s.byName[name] = p
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// Get returns the persona by name.
func (s *Set) Get(name string) (Persona, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Names returns all persona names in stable order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// All returns the personas in stable order.
func (s *Set) All() []Persona {
	out := make([]Persona, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byName[n])
	}
	return out
}

// Len reports the number of personas.
func (s *Set) Len() int { return len(s.names) }

// HasSkill reports whether the persona lists the named skill.
func (p Persona) HasSkill(name string) bool {
	for _, sk := range p.Skills {
		if sk == name {
			return true
		}
	}
	return false
}
