// Package strategy is the decision agent: an observe-orient-decide
// loop that classifies the environment once per persona turn and maps
// the observation to a scene-producing strategy. Weights live in data
// tables, not scattered comparisons, so policy is testable on its own.
package strategy

import (
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Strategy names a policy for producing the next scene.
type Strategy string

const (
	// StrategyLive delegates scene generation to the LLM collaborator.
	StrategyLive Strategy = "live"
	// StrategySkill runs a registered skill generator (git, docker...).
	StrategySkill Strategy = "skill"
	// StrategyForecast replays the next pre-generated scene.
	StrategyForecast Strategy = "forecast"
	// StrategyTemplate fuzzes a catalog scene. Also the universal
	// fallback when any other branch produces nothing.
	StrategyTemplate Strategy = "template"
	// StrategyCache replays a cached command list.
	StrategyCache Strategy = "cache"
	// StrategyBreadcrumb leaks a planted hint into a log file.
	StrategyBreadcrumb Strategy = "breadcrumb"
	// StrategyHoneytoken plants a fake credential.
	StrategyHoneytoken Strategy = "honeytoken"
	// StrategyVuln stages a deliberate misconfiguration.
	StrategyVuln Strategy = "vuln"
	// StrategyMaintenance runs an asset refresh / self-heal pass.
	StrategyMaintenance Strategy = "maintenance"
	// StrategyCatalog is the plain weighted catalog pick used when no
	// strategy is forced and the dispatcher is not consulted.
	StrategyCatalog Strategy = "catalog"
)

// Observation is the dispatcher's one transient reading of the
// environment per persona turn.
type Observation string

const (
	ObservationAttack  Observation = "ATTACK_DETECTED"
	ObservationProbing Observation = "PROBING_DETECTED"
	ObservationStale   Observation = "SYSTEM_STALE"
	ObservationNormal  Observation = "NORMAL"
)

// Choice is the dispatcher's ephemeral output: which strategy, and a
// human-readable reason for the log.
type Choice struct {
	Strategy Strategy
	Reason   string
}

// ObservationProbs configures how often each non-normal observation
// occurs. Remainder is NORMAL.
type ObservationProbs struct {
	Attack  float64
	Probing float64
	Stale   float64
}

// DefaultObservationProbs matches production tuning: attacks are rare,
// probing less so, staleness rarer still.
func DefaultObservationProbs() ObservationProbs {
	return ObservationProbs{Attack: 0.05, Probing: 0.10, Stale: 0.02}
}

// weightedEntry is one band of the cumulative-weight table.
type weightedEntry struct {
	threshold float64
	strategy  Strategy
}

// defaultNormalTable is the NORMAL-observation draw: cumulative
// thresholds over live 30 / skill 15 / forecast 15 / template 10 /
// cache 15 / breadcrumb 5 / honeytoken 5 / vuln 5 percent.
func defaultNormalTable() []weightedEntry {
	return []weightedEntry{
		{0.30, StrategyLive},
		{0.45, StrategySkill},
		{0.60, StrategyForecast},
		{0.70, StrategyTemplate},
		{0.85, StrategyCache},
		{0.90, StrategyBreadcrumb},
		{0.95, StrategyHoneytoken},
		{1.00, StrategyVuln},
	}
}

// Dispatcher classifies the environment and picks strategies.
type Dispatcher struct {
	rng         *rand.Rand
	probs       ObservationProbs
	table       []weightedEntry
	liveEnabled bool
	log         *zap.Logger
}

// NewDispatcher builds a dispatcher. liveEnabled gates the
// live-generation band: without a generative collaborator that band
// resolves to template randomization instead.
func NewDispatcher(rng *rand.Rand, probs ObservationProbs, liveEnabled bool, log *zap.Logger) *Dispatcher {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		rng:         rng,
		probs:       probs,
		table:       defaultNormalTable(),
		liveEnabled: liveEnabled,
		log:         log.Named("dispatcher"),
	}
}

// Observe draws one observation using the configured probabilities.
func (d *Dispatcher) Observe() Observation {
	r := d.rng.Float64()
	switch {
	case r < d.probs.Attack:
		return ObservationAttack
	case r < d.probs.Attack+d.probs.Probing:
		return ObservationProbing
	case r < d.probs.Attack+d.probs.Probing+d.probs.Stale:
		return ObservationStale
	default:
		return ObservationNormal
	}
}

// Decide maps an observation to a strategy. Non-normal observations
// map deterministically; NORMAL runs the cumulative-weight table.
func (d *Dispatcher) Decide(obs Observation) Choice {
	switch obs {
	case ObservationAttack:
		return Choice{StrategyHoneytoken, "attack detected, baiting with honeytoken"}
	case ObservationProbing:
		return Choice{StrategyVuln, "probing detected, staging vulnerability feint"}
	case ObservationStale:
		return Choice{StrategyMaintenance, "system stale, running maintenance pass"}
	}

	r := d.rng.Float64()
	for _, e := range d.table {
		if r < e.threshold {
			s := e.strategy
			if s == StrategyLive && !d.liveEnabled {
				s = StrategyTemplate
			}
			return Choice{s, "normal operations, weighted draw"}
		}
	}
	// Unreachable with a well-formed table; last band catches r ~ 1.0.
	return Choice{StrategyVuln, "normal operations, weighted draw"}
}

// Next performs a full observe-decide turn and logs the outcome.
func (d *Dispatcher) Next() Choice {
	obs := d.Observe()
	c := d.Decide(obs)
	d.log.Debug("strategy selected",
		zap.String("observation", string(obs)),
		zap.String("strategy", string(c.Strategy)),
		zap.String("reason", c.Reason))
	return c
}

// Parse maps a CLI strategy flag to a Strategy, reporting whether the
// name is known.
func Parse(name string) (Strategy, bool) {
	switch Strategy(name) {
	case StrategyLive, StrategySkill, StrategyForecast, StrategyTemplate,
		StrategyCache, StrategyBreadcrumb, StrategyHoneytoken,
		StrategyVuln, StrategyMaintenance, StrategyCatalog:
		return Strategy(name), true
	}
	return "", false
}
