// Package trigger implements the cross-persona causality registry:
// rules linking one persona's observed command to an event that can
// force another persona into action on a later turn.
package trigger

import (
	"strings"

	"go.uber.org/zap"

	"mirage/internal/state"
)

// SourceAny matches commands from every persona.
const SourceAny = "any"

// Rule is a single causal link. Rules are read-only during a cycle;
// the content library may evolve them between cycles.
type Rule struct {
	Source       string `json:"source" yaml:"source"`
	Pattern      string `json:"pattern" yaml:"pattern"`
	Event        string `json:"event" yaml:"event"`
	Target       string `json:"target" yaml:"target"`
	SceneKeyword string `json:"scene_keyword" yaml:"scene_keyword"`
}

// RuleSource supplies the current rule list. The content library
// implements this so evolved rules take effect without re-wiring.
type RuleSource interface {
	Triggers() []Rule
}

// staticSource wraps a fixed rule list.
type staticSource []Rule

func (s staticSource) Triggers() []Rule { return s }

// Static returns a RuleSource over a fixed slice, for tests and
// configurations without a content library.
func Static(rules []Rule) RuleSource { return staticSource(rules) }

// Registry evaluates trigger rules against the shared event set.
type Registry struct {
	source RuleSource
	log    *zap.Logger
}

// NewRegistry creates a registry reading rules from source.
func NewRegistry(source RuleSource, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{source: source, log: log.Named("trigger")}
}

// Check scans rules targeting the persona against the pending event
// set. The first match (rule list order) wins: its event is consumed
// and its scene keyword returned. At most one consumption per persona
// per cycle; other pending events stay for later turns.
func (r *Registry) Check(st *state.State, persona string) (string, bool) {
	for _, rule := range r.source.Triggers() {
		if rule.Target != persona {
			continue
		}
		if !st.HasEvent(rule.Event) {
			continue
		}
		st.ConsumeEvent(rule.Event)
		r.log.Info("trigger activated",
			zap.String("persona", persona),
			zap.String("event", rule.Event),
			zap.String("keyword", rule.SceneKeyword))
		return rule.SceneKeyword, true
	}
	return "", false
}

// Process scans executed commands against rules sourced from the
// persona (or the wildcard) and fires matching events. Insertion is
// idempotent: an already-pending event is never duplicated.
func (r *Registry) Process(st *state.State, persona string, commands []string) {
	for _, rule := range r.source.Triggers() {
		if rule.Source != persona && rule.Source != SourceAny {
			continue
		}
		for _, cmd := range commands {
			if !strings.Contains(cmd, rule.Pattern) {
				continue
			}
			if st.FireEvent(rule.Event) {
				r.log.Info("trigger fired",
					zap.String("persona", persona),
					zap.String("pattern", rule.Pattern),
					zap.String("event", rule.Event))
			}
			break
		}
	}
}
