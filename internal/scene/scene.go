// Package scene defines the unit of simulated activity: a named,
// ordered list of shell commands tied to a working directory and a
// behavioral category. Scenes are built once by a strategy branch and
// consumed exactly once by the executor.
package scene

import "path/filepath"

// Category classifies a scene's behavioral flavor.
type Category string

const (
	CategoryRoutine     Category = "Routine"
	CategoryVariant     Category = "Variant"
	CategoryAnomaly     Category = "Anomaly"
	CategoryResponsive  Category = "Responsive"
	CategoryMaintenance Category = "Maintenance"
	CategorySkill       Category = "Skill"
)

// DefaultZone is substituted when a provider hands back a relative or
// empty working directory.
const DefaultZone = "/tmp"

// Scene is an ordered set of commands performed in one sitting.
type Scene struct {
	Name     string   `json:"name" yaml:"name"`
	Category Category `json:"category" yaml:"category"`
	Zone     string   `json:"zone" yaml:"zone"`
	Commands []string `json:"commands" yaml:"commands"`
}

// Decision is the single result shape every strategy branch produces:
// which persona acts, and what it does. A nil Scene means the branch
// produced nothing and the caller should fall back.
type Decision struct {
	Persona string
	Scene   *Scene
}

// NormalizeZone forces the zone to an absolute path, substituting
// DefaultZone for relative or empty values.
func (s *Scene) NormalizeZone() {
	if s.Zone == "" || !filepath.IsAbs(s.Zone) {
		s.Zone = DefaultZone
	}
}

// Clone returns a deep copy so template fuzzing never mutates a
// catalog entry.
func (s *Scene) Clone() *Scene {
	cp := *s
	cp.Commands = append([]string(nil), s.Commands...)
	return &cp
}

// Empty reports whether the scene has no commands to run.
func (s *Scene) Empty() bool {
	return s == nil || len(s.Commands) == 0
}
