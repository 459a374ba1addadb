// Package engine is the cycle controller: once per cycle it walks
// every persona through the trigger check, the temporal gate, the
// strategy dispatcher, the scene resolver, and the executor, then
// persists cycle state. Personas are processed sequentially on one
// goroutine; the cycle state has exactly one writer.
package engine

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"mirage/internal/config"
	"mirage/internal/content"
	"mirage/internal/defense"
	"mirage/internal/executor"
	"mirage/internal/persona"
	"mirage/internal/resolver"
	"mirage/internal/scene"
	"mirage/internal/schedule"
	"mirage/internal/skills"
	"mirage/internal/state"
	"mirage/internal/strategy"
	"mirage/internal/trigger"
)

// Engine owns one deception run.
type Engine struct {
	cfg      *config.Config
	personas *persona.Set

	store *state.Store
	st    *state.State

	lib        *content.Library
	gate       *schedule.Gate
	dispatcher *strategy.Dispatcher
	resolver   *resolver.Resolver
	exec       *executor.Engine
	triggers   *trigger.Registry
	noise      *strategy.Noise
	defense    *defense.Honeyports

	rng *rand.Rand
	now func() time.Time
	log *zap.Logger
}

// Options overrides clock and randomness, for tests.
type Options struct {
	Now    func() time.Time
	Rng    *rand.Rand
	Runner executor.Runner // overrides the host/dry runner
}

// New wires an engine from configuration. gen may be nil to run
// without a generative collaborator.
func New(cfg *config.Config, personas *persona.Set, gen content.Generator, dryRun bool, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	lib := content.NewLibrary(cfg.ConfigDir, rng, log)
	store := state.NewStore(cfg.StatePath(), log)
	st := store.Load()

	triggers := trigger.NewRegistry(lib, log)

	runner := opts.Runner
	if runner == nil {
		if dryRun {
			runner = executor.NewDryRunner(log)
		} else {
			runner = executor.NewHostRunner(cfg.CommandTimeout(), cfg.Execution.Sudo, log)
		}
	}

	cadence := cfg.TypingCadence()
	if dryRun {
		cadence = 0
	}
	exec := executor.New(runner, gen, triggers, lib, executor.Options{
		Cadence: cadence,
		DryRun:  dryRun,
		Now:     now,
		Rng:     rng,
	}, log)

	var noise *strategy.Noise
	if cfg.Execution.Noise {
		noise = strategy.NewNoise(rng, strategy.NoiseRules{Typos: lib.Typos()})
	}

	return &Engine{
		cfg:        cfg,
		personas:   personas,
		store:      store,
		st:         st,
		lib:        lib,
		gate:       schedule.NewGate(rng),
		dispatcher: strategy.NewDispatcher(rng, strategy.DefaultObservationProbs(), gen != nil, log),
		resolver:   resolver.New(lib, gen, skills.Default(), rng, log),
		exec:       exec,
		triggers:   triggers,
		noise:      noise,
		defense:    defense.New(cfg.Defense.Ports, cfg.Defense.Banner, log),
		rng:        rng,
		now:        now,
		log:        log.Named("engine"),
	}
}

// Library exposes the content library for management commands.
func (e *Engine) Library() *content.Library { return e.lib }

// State exposes the live cycle state, primarily for tests.
func (e *Engine) State() *state.State { return e.st }

// StartDefense brings up the honeyport listeners.
func (e *Engine) StartDefense(ctx context.Context) {
	if e.cfg.Defense.Enabled {
		e.defense.Start(ctx)
	}
}

// Shutdown persists final state and stops the listeners.
func (e *Engine) Shutdown() {
	if err := e.store.Save(e.st); err != nil {
		e.log.Error("final state save failed", zap.Error(err))
	}
	e.defense.Stop()
}

// RunCycle processes every persona once, then persists state and
// advances the simulated day. hint forces a strategy for every
// gated persona; pass "" for the dispatcher's own choice.
func (e *Engine) RunCycle(ctx context.Context, hint strategy.Strategy) error {
	e.log.Info("cycle start", zap.Int("day", e.lib.CurrentDay()))

	for _, p := range e.personas.All() {
		if ctx.Err() != nil {
			break
		}
		e.runPersona(ctx, p, hint)
	}

	e.st.LastRun = e.now().Unix()
	e.lib.AdvanceDay()
	if err := e.store.Save(e.st); err != nil {
		// Durability gap, not a stop condition: in-memory state
		// stays authoritative for the rest of the run.
		e.log.Error("state save failed", zap.Error(err))
	}

	e.log.Info("cycle complete")
	return ctx.Err()
}

// runPersona is one persona's turn: trigger check (forced run,
// bypassing the gate), temporal gate, strategy, resolution,
// execution.
func (e *Engine) runPersona(ctx context.Context, p persona.Persona, hint strategy.Strategy) {
	var sc *sceneHolder

	if keyword, forced := e.triggers.Check(e.st, p.Name); forced {
		sc = &sceneHolder{persona: p, scene: e.resolver.ResolveTriggered(p, keyword)}
	} else if !e.gate.IsActive(p, e.now()) {
		return
	}

	if sc == nil {
		var choice strategy.Choice
		if hint != "" {
			choice = strategy.Choice{Strategy: hint, Reason: "operator override"}
		} else {
			choice = e.dispatcher.Next()
		}

		dec := e.resolver.Resolve(ctx, choice, p, e.st.LastScene(p.Name))
		if dec.Scene == nil {
			return
		}

		target := p
		if dec.Persona != p.Name {
			// Forecast scenes carry their own performer.
			if other, ok := e.personas.Get(dec.Persona); ok {
				target = other
			}
		}
		sc = &sceneHolder{persona: target, scene: dec.Scene}
	}

	if e.noise != nil {
		sc.scene.Commands = e.noise.Inject(sc.scene.Commands)
	}

	e.exec.RunScene(ctx, e.st, sc.persona, sc.scene)
}

type sceneHolder struct {
	persona persona.Persona
	scene   *scene.Scene
}
